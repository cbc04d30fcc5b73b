// Seed inserts development sample data: an admin, an org owner with one org, a staff member,
// and customers in each risk tier. It is idempotent: nothing is written if the admin exists.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	accountdomain "carescope/backend/internal/account/domain"
	accountrepo "carescope/backend/internal/account/repository"
	alertrepo "carescope/backend/internal/alert/repository"
	"carescope/backend/internal/audit"
	"carescope/backend/internal/config"
	customerrepo "carescope/backend/internal/customer/repository"
	customerservice "carescope/backend/internal/customer/service"
	"carescope/backend/internal/db"
	membershipdomain "carescope/backend/internal/membership/domain"
	membershiprepo "carescope/backend/internal/membership/repository"
	membershipservice "carescope/backend/internal/membership/service"
	orgdomain "carescope/backend/internal/organization/domain"
	organizationrepo "carescope/backend/internal/organization/repository"
	paymentdomain "carescope/backend/internal/payment/domain"
	paymentrepo "carescope/backend/internal/payment/repository"
	paymentservice "carescope/backend/internal/payment/service"
	"carescope/backend/internal/risk"
	"carescope/backend/internal/security"
)

const (
	adminEmail = "admin@example.com"
	ownerEmail = "owner@example.com"
	staffEmail = "staff@example.com"
	devOrgName = "Sunrise Care"
)

var (
	password string

	rootCmd = &cobra.Command{
		Use:           "seed",
		Short:         "Insert development sample data",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			conn, err := db.Open(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("db: %w", err)
			}
			defer conn.Close()
			return seed(c.Context(), &seeder{
				tx:          db.NewTxManager(conn),
				hasher:      security.NewHasher(cfg.BcryptCost),
				accounts:    accountrepo.NewPostgresRepository(conn),
				orgs:        organizationrepo.NewPostgresRepository(conn),
				memberships: membershiprepo.NewPostgresRepository(conn),
				customers:   customerrepo.NewPostgresRepository(conn),
				payments:    paymentrepo.NewPostgresRepository(conn),
				alerts:      alertrepo.NewPostgresRepository(conn),
			})
		},
	}
)

func init() {
	rootCmd.Flags().StringVar(&password, "password", "password123", "password for every seeded account")
}

type seeder struct {
	tx          *db.TxManager
	hasher      *security.Hasher
	accounts    *accountrepo.PostgresRepository
	orgs        *organizationrepo.PostgresRepository
	memberships *membershiprepo.PostgresRepository
	customers   *customerrepo.PostgresRepository
	payments    *paymentrepo.PostgresRepository
	alerts      *alertrepo.PostgresRepository
}

type sampleCustomer struct {
	name, email, phone string
	// paymentDaysDue are due dates relative to today; past dates are seeded overdue.
	paymentDaysDue []int
}

var sampleCustomers = []sampleCustomer{
	{name: "Ada Byrne", email: "ada@example.com", phone: "+15550100", paymentDaysDue: []int{14}},
	{name: "Ben Okafor", email: "ben@example.com", phone: "+15550101", paymentDaysDue: []int{-10, 20}},
	{name: "Chloe Marsh", email: "chloe@example.com", phone: "+15550102", paymentDaysDue: []int{-45, -15, -5}},
}

func seed(ctx context.Context, s *seeder) error {
	logger := log.FromContext(ctx)

	existing, err := s.accounts.GetByEmail(ctx, adminEmail)
	if err != nil {
		return fmt.Errorf("seed check: %w", err)
	}
	if existing != nil {
		logger.Info("seed already applied, skipping", "email", adminEmail)
		return nil
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	org := &orgdomain.Org{ID: uuid.New().String(), Name: devOrgName, Active: true, CreatedAt: now}
	registry := membershipservice.NewRegistry(s.memberships, s.accounts, s.tx)

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.orgs.CreateOrganization(ctx, org); err != nil {
			return fmt.Errorf("create org: %w", err)
		}
		for _, a := range []struct {
			email string
			name  string
			role  accountdomain.GlobalRole
			org   membershipdomain.Role
		}{
			{adminEmail, "Platform Admin", accountdomain.RoleAdmin, ""},
			{ownerEmail, "Olivia Owner", accountdomain.RoleOrgOwner, membershipdomain.RoleOwner},
			{staffEmail, "Sam Staff", accountdomain.RoleStaff, membershipdomain.RoleMember},
		} {
			acct := &accountdomain.Account{
				ID:           uuid.New().String(),
				Email:        a.email,
				Name:         a.name,
				PasswordHash: digest,
				Role:         a.role,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if a.org != "" {
				acct.ActiveOrgID = &org.ID
			}
			if err := s.accounts.Create(ctx, acct); err != nil {
				return fmt.Errorf("create account %s: %w", a.email, err)
			}
			if a.org == "" {
				continue
			}
			if _, err := registry.Add(ctx, acct.ID, org.ID, a.org, membershipdomain.OnDuplicateIgnore); err != nil {
				return fmt.Errorf("add membership %s: %w", a.email, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	engine := risk.NewEngine(s.customers, s.payments, s.alerts, s.tx, nil)
	customers := customerservice.NewService(s.customers, engine, audit.Nop{})
	payments := paymentservice.NewService(s.payments, s.customers, engine, s.alerts, s.tx, nil)
	today := now.Truncate(24 * time.Hour)
	for _, sc := range sampleCustomers {
		c, err := customers.Create(ctx, customerservice.CreateInput{OrgID: org.ID, Name: sc.name, Email: sc.email, Phone: sc.phone})
		if err != nil {
			return fmt.Errorf("create customer %s: %w", sc.email, err)
		}
		for _, days := range sc.paymentDaysDue {
			rec, err := payments.Issue(ctx, paymentservice.IssueInput{
				OrgID:       org.ID,
				CustomerID:  c.ID,
				AmountCents: 25000,
				DueDate:     today.AddDate(0, 0, days),
			})
			if err != nil {
				return fmt.Errorf("issue payment for %s: %w", sc.email, err)
			}
			if days >= 0 {
				continue
			}
			if _, err := payments.TransitionStatus(ctx, org.ID, rec.ID, paymentdomain.StatusOverdue, nil); err != nil {
				return fmt.Errorf("mark payment overdue for %s: %w", sc.email, err)
			}
		}
	}

	logger.Info("seed completed", "org_id", org.ID, "customers", len(sampleCustomers))
	for _, email := range []string{adminEmail, ownerEmail, staffEmail} {
		fmt.Printf("login: %s / %s\n", email, password)
	}
	return nil
}

func main() {
	ctx := log.WithContext(context.Background(), log.Default())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
