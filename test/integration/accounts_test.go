// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gomail "github.com/wneessen/go-mail"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/internal/account/postgres"
	"github.com/holomush/accounts/internal/httpapi"
	"github.com/holomush/accounts/internal/notify"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/internal/store"
)

const fixedOTP = "135790"

// outbox captures rendered messages instead of talking to an SMTP relay.
type outbox struct {
	mu       sync.Mutex
	messages []string
}

func (o *outbox) Send(_ context.Context, msg *gomail.Msg) error {
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, buf.String())
	return nil
}

func (o *outbox) all() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.messages...)
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
	User    *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

var _ = Describe("Accounts API", Ordered, func() {
	var (
		ctx        context.Context
		container  *tcpostgres.PostgresContainer
		pool       *pgxpool.Pool
		dispatcher *notify.Dispatcher
		metrics    *observability.Metrics
		mail       *outbox
		server     *httptest.Server
		token      string
	)

	call := func(method, path, bearer string, body any) (int, apiResponse) {
		var payload bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&payload).Encode(body)).To(Succeed())
		}
		req, err := http.NewRequestWithContext(ctx, method, server.URL+path, &payload)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		resp, err := server.Client().Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		var out apiResponse
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		return resp.StatusCode, out
	}

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("accounts"),
			tcpostgres.WithUsername("accounts"),
			tcpostgres.WithPassword("accounts"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2)),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err = store.Connect(ctx, connStr, 3)
		Expect(err).NotTo(HaveOccurred())

		composer, err := notify.NewComposer(notify.DefaultFrom)
		Expect(err).NotTo(HaveOccurred())
		mail = &outbox{}
		metrics = observability.NewMetrics(prometheus.NewRegistry())
		dispatcher = notify.NewDispatcher(notify.NewMailer(composer, mail),
			notify.WithResultHook(func(kind account.EventKind, result string) {
				metrics.RecordNotification(string(kind), result)
			}),
		)

		hasher, err := account.NewBcryptHasherWithCost(bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		tokens, err := account.NewTokenIssuer("integration-secret")
		Expect(err).NotTo(HaveOccurred())
		svc, err := account.NewService(postgres.NewUserRepository(pool), hasher, tokens, dispatcher,
			account.WithOTPGenerator(func() (string, error) { return fixedOTP, nil }))
		Expect(err).NotTo(HaveOccurred())

		server = httptest.NewServer(httpapi.NewHandler(svc, httpapi.WithMetrics(metrics)).Router())
	})

	AfterAll(func() {
		if server != nil {
			server.Close()
		}
		if dispatcher != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			Expect(dispatcher.Close(closeCtx)).To(Succeed())
		}
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			Expect(container.Terminate(context.Background())).To(Succeed())
		}
	})

	It("registers a user and sends a welcome email", func() {
		status, resp := call(http.MethodPost, "/register", "", map[string]string{
			"username":    "alice",
			"email":       "Alice@Example.com",
			"password":    "first-password",
			"phonenumber": "+15550100",
		})
		Expect(status).To(Equal(http.StatusCreated))
		Expect(resp.Success).To(BeTrue())

		Eventually(mail.all).Should(ContainElement(ContainSubstring("alice@example.com")))
	})

	It("rejects a second registration for the same email", func() {
		status, resp := call(http.MethodPost, "/register", "", map[string]string{
			"username":    "alice2",
			"email":       "alice@example.com",
			"password":    "other-password",
			"phonenumber": "+15550101",
		})
		Expect(status).To(Equal(http.StatusConflict))
		Expect(resp.Message).To(Equal("User with this email already exists."))
	})

	It("logs in with the registered password", func() {
		status, resp := call(http.MethodPost, "/user-login", "", map[string]string{
			"email":    "alice@example.com",
			"password": "first-password",
		})
		Expect(status).To(Equal(http.StatusOK))
		Expect(resp.Token).NotTo(BeEmpty())
		Expect(resp.User).NotTo(BeNil())
		Expect(resp.User.Email).To(Equal("alice@example.com"))
		token = resp.Token
	})

	It("edits the profile with the bearer token", func() {
		status, resp := call(http.MethodPut, "/user/edit", token, map[string]string{
			"username": "alice-renamed",
		})
		Expect(status).To(Equal(http.StatusOK))
		Expect(resp.Message).To(Equal("Profile updated successfully"))
	})

	It("resets the password through the OTP flow", func() {
		status, _ := call(http.MethodPost, "/auth/reset-password", "", map[string]string{
			"email":       "alice@example.com",
			"newPassword": "second-password",
		})
		Expect(status).To(Equal(http.StatusForbidden))

		status, _ = call(http.MethodPost, "/auth/forgot-password", "", map[string]string{
			"email": "alice@example.com",
		})
		Expect(status).To(Equal(http.StatusOK))
		Eventually(mail.all).Should(ContainElement(ContainSubstring(fixedOTP)))

		status, _ = call(http.MethodPost, "/auth/verify-otp", "", map[string]string{
			"email": "alice@example.com",
			"otp":   "000000",
		})
		Expect(status).To(Equal(http.StatusBadRequest))

		status, _ = call(http.MethodPost, "/auth/verify-otp", "", map[string]string{
			"email": "alice@example.com",
			"otp":   fixedOTP,
		})
		Expect(status).To(Equal(http.StatusOK))

		status, _ = call(http.MethodPost, "/auth/reset-password", "", map[string]string{
			"email":       "alice@example.com",
			"newPassword": "second-password",
		})
		Expect(status).To(Equal(http.StatusOK))

		status, _ = call(http.MethodPost, "/auth/reset-password", "", map[string]string{
			"email":       "alice@example.com",
			"newPassword": "third-password",
		})
		Expect(status).To(Equal(http.StatusForbidden))
	})

	It("accepts only the new password", func() {
		status, _ := call(http.MethodPost, "/user-login", "", map[string]string{
			"email":    "alice@example.com",
			"password": "first-password",
		})
		Expect(status).To(Equal(http.StatusUnauthorized))

		status, resp := call(http.MethodPost, "/user-login", "", map[string]string{
			"email":    "alice@example.com",
			"password": "second-password",
		})
		Expect(status).To(Equal(http.StatusOK))
		token = resp.Token
	})

	It("deletes the account", func() {
		status, resp := call(http.MethodDelete, "/user/delete", token, nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(resp.Message).To(Equal("User deleted successfully"))

		status, _ = call(http.MethodDelete, "/user/delete", token, nil)
		Expect(status).To(Equal(http.StatusNotFound))

		status, _ = call(http.MethodPost, "/user-login", "", map[string]string{
			"email":    "alice@example.com",
			"password": "second-password",
		})
		Expect(status).To(Equal(http.StatusUnauthorized))
	})

	It("counts requests and delivered notifications", func() {
		Eventually(func() float64 {
			return testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues(
				string(account.EventAccountDeleted), notify.ResultSent))
		}).Should(Equal(1.0))
		Expect(testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("register", "201"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("register", "409"))).To(Equal(1.0))
	})
})
