// Command bootstrap prepares a loaner database: it applies migrations and
// installs the default settings, roles, reminder levels, subscriptions,
// survey questions and tags.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/grabngo/loaner/internal/action"
	"github.com/grabngo/loaner/internal/config"
	"github.com/grabngo/loaner/internal/event"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
	"github.com/grabngo/loaner/internal/service"
	"github.com/grabngo/loaner/internal/settings"
	"github.com/grabngo/loaner/migrations"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	cfg *config.Config
	db  *gorm.DB

	rootCmd = &cobra.Command{
		Use:   "bootstrap",
		Short: "Prepare a loaner database",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			var err error
			// Force DB logging off to avoid noise
			db, err = gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
				Logger: logger.Default.LogMode(logger.Silent),
			})
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			log.Println("✅ Connected to Database")
			return nil
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrations.Run(cfg.DB.URL())
		},
	}

	rollbackCmd = &cobra.Command{
		Use:   "rollback",
		Short: "Revert the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrations.Rollback(cfg.DB.URL())
		},
	}

	runCmd = &cobra.Command{
		Use:   "run [task...]",
		Short: "Run bootstrap tasks (all of them when none is named)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := migrations.Run(cfg.DB.URL()); err != nil {
				return err
			}
			svc, err := newBootstrapService()
			if err != nil {
				return err
			}
			log.Println("🌱 Running bootstrap tasks...")
			status, err := svc.Run(cmd.Context(), args)
			if err != nil {
				return err
			}
			printStatus(status)
			if !status.Completed {
				return fmt.Errorf("bootstrap incomplete")
			}
			return nil
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Report bootstrap progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newBootstrapService()
			if err != nil {
				return err
			}
			status, err := svc.Status(cmd.Context())
			if err != nil {
				return err
			}
			if version, dirty, err := migrations.Version(cfg.DB.URL()); err == nil {
				log.Printf("📦 Schema version %d (dirty: %v)", version, dirty)
			}
			printStatus(status)
			return nil
		},
	}

	tasksCmd = &cobra.Command{
		Use:   "tasks",
		Short: "List bootstrap task names",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newBootstrapService()
			if err != nil {
				return err
			}
			for _, name := range svc.TaskNames() {
				fmt.Println(name)
			}
			return nil
		},
	}
)

// newBootstrapService wires the services bootstrap tasks touch. None of the
// tasks raise events or call the directory.
func newBootstrapService() (*service.BootstrapService, error) {
	store, err := settings.New(repository.NewSettingRepository(db))
	if err != nil {
		return nil, err
	}
	registry, err := action.NewRegistry(action.Builtins(), false)
	if err != nil {
		return nil, err
	}

	subs := repository.NewSubscriptionRepository(db)
	bus := event.NewBus(subs, action.NewDispatcher(registry, &action.Env{}), nil, nil, nil)
	users := service.NewUserService(repository.NewUserRepository(db), nil, cfg.App.Superadmins)
	reminders := service.NewReminderService(
		repository.NewDeviceRepository(db),
		repository.NewReminderRepository(db),
		subs, registry, bus,
	)
	surveys := service.NewSurveyService(repository.NewSurveyRepository(db), store)
	tags := service.NewTagService(repository.NewTagRepository(db))

	return service.NewBootstrapService(repository.NewBootstrapRepository(db), store, users, reminders, surveys, tags), nil
}

func printStatus(status *model.BootstrapStatusResponse) {
	out, _ := json.MarshalIndent(status, "", "  ")
	fmt.Println(string(out))
}

func main() {
	rootCmd.AddCommand(migrateCmd, rollbackCmd, runCmd, statusCmd, tasksCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
}
