package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"forwardtest/internal/modules/broker/service"
	"forwardtest/internal/modules/config"
	diagsvc "forwardtest/internal/modules/diagnostics/service"
	"forwardtest/internal/modules/sessions/service/pg"
	"forwardtest/pkg/db"
	"forwardtest/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// diagnose is a one-shot CLI: run the consistency check for one user and
// print the verdict as JSON. Exit code 0 means coherent, 1 means a finding,
// 2 means the check itself failed.
func main() {
	if err := run(); err != nil {
		log.Println(err)
		os.Exit(2)
	}
}

func run() error {
	_ = godotenv.Load()

	flush, err := logger.Init("diagnose")
	if err != nil {
		return err
	}
	defer flush()

	v := viper.New()
	v.SetEnvPrefix("DIAG")
	v.AutomaticEnv()
	v.SetDefault("timeout", "30s")
	if len(os.Args) > 1 {
		v.Set("user", os.Args[1])
	}

	user := v.GetString("user")
	if user == "" {
		return errors.New("usage: diagnose <user-id> (or DIAG_USER env)")
	}

	cfg, err := config.NewConfig()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.GetDuration("timeout"))
	defer cancel()

	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.DB})
	if err != nil {
		return errors.Wrap(err, "connect postgres")
	}
	tm := db.NewPgTxManager(pool)
	defer tm.Close()

	store := pg.New(tm)
	client := service.NewClient(cfg)
	diag := diagsvc.New(cfg, store, client)

	start := time.Now()
	verdict, err := diag.Run(ctx, user)
	if err != nil {
		return errors.Wrap(err, "run diagnostics")
	}
	logger.Info("diagnostics for %s finished in %s", user, time.Since(start))

	out, err := sonic.ConfigDefault.MarshalIndent(verdict, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode verdict")
	}
	fmt.Println(string(out))

	if verdict.PrimaryIssue != "" {
		os.Exit(1)
	}
	return nil
}
