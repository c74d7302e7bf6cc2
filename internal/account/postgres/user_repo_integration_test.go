// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/internal/account/postgres"
	"github.com/holomush/accounts/internal/store"
)

var _ = Describe("UserRepository", Ordered, func() {
	var (
		ctx       context.Context
		container *tcpostgres.PostgresContainer
		pool      *pgxpool.Pool
		repo      *postgres.UserRepository
		now       time.Time
	)

	BeforeAll(func() {
		ctx = context.Background()
		now = time.Now().UTC().Truncate(time.Microsecond)

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
		repo = postgres.NewUserRepository(pool)
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	BeforeEach(func() {
		_, err := pool.Exec(ctx, `TRUNCATE users`)
		Expect(err).NotTo(HaveOccurred())
	})

	newUser := func(email string) *account.User {
		u, err := account.NewUser("alice", email, "$2a$04$hash", "+15550100", now)
		Expect(err).NotTo(HaveOccurred())
		return u
	}

	It("round-trips a user by id and by email", func() {
		u := newUser("alice@example.com")
		Expect(repo.Create(ctx, u)).To(Succeed())

		byID, err := repo.FindByID(ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(byID.Email).To(Equal("alice@example.com"))
		Expect(byID.CreatedAt.Equal(now)).To(BeTrue())
		Expect(byID.OTP).To(BeNil())

		byEmail, err := repo.FindByEmail(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(byEmail.ID).To(Equal(u.ID))
	})

	It("reports a duplicate email as a conflict", func() {
		Expect(repo.Create(ctx, newUser("dup@example.com"))).To(Succeed())
		err := repo.Create(ctx, newUser("dup@example.com"))
		Expect(err).To(MatchError(account.ErrConflict))
	})

	It("reports missing users as not found", func() {
		_, err := repo.FindByEmail(ctx, "ghost@example.com")
		Expect(err).To(MatchError(account.ErrNotFound))

		_, err = repo.FindByID(ctx, ulid.Make())
		Expect(err).To(MatchError(account.ErrNotFound))

		err = repo.Update(ctx, newUser("ghost@example.com"))
		Expect(err).To(MatchError(account.ErrNotFound))
	})

	It("persists the OTP lifecycle", func() {
		u := newUser("otp@example.com")
		Expect(repo.Create(ctx, u)).To(Succeed())

		u.IssueOTP("123456", now)
		Expect(repo.Update(ctx, u)).To(Succeed())

		stored, err := repo.FindByEmail(ctx, "otp@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.OTP).NotTo(BeNil())
		Expect(*stored.OTP).To(Equal("123456"))
		Expect(stored.OTPState(now)).To(Equal(account.OTPPending))

		Expect(stored.CheckOTP("123456", now.Add(time.Minute))).To(BeTrue())
		Expect(repo.Update(ctx, stored)).To(Succeed())

		stored, err = repo.FindByEmail(ctx, "otp@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.OTPVerified).To(BeTrue())

		Expect(stored.ConsumeOTP("$2a$04$newhash", now.Add(2*time.Minute))).To(Succeed())
		Expect(repo.Update(ctx, stored)).To(Succeed())

		stored, err = repo.FindByEmail(ctx, "otp@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.OTP).To(BeNil())
		Expect(stored.OTPExpiresAt).To(BeNil())
		Expect(stored.OTPVerified).To(BeFalse())
		Expect(stored.PasswordHash).To(Equal("$2a$04$newhash"))
	})

	It("deletes exactly one row", func() {
		u := newUser("bye@example.com")
		Expect(repo.Create(ctx, u)).To(Succeed())

		n, err := repo.Delete(ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		n, err = repo.Delete(ctx, u.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())
	})
})
