package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/focalpics/focal/internal/config"
	"github.com/focalpics/focal/internal/database"
	"github.com/focalpics/focal/internal/htpasswd"
	"github.com/focalpics/focal/internal/logging"
	"github.com/focalpics/focal/internal/mailer"
	"github.com/focalpics/focal/internal/server"
	"github.com/focalpics/focal/internal/server/session"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const dbname = "focal.db"

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg     string
	envfile string
)

func main() {
	c := &cobra.Command{
		Use:     "focal",
		Short:   "Focal Pics session server",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.NoArgs,
	}
	c.PersistentFlags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.PersistentFlags().StringVar(&envfile, "env", "", "Dotenv file loaded before the configuration")

	c.AddCommand(initCmd)
	c.AddCommand(reindexCmd)
	c.AddCommand(serverCmd)

	if err := c.Execute(); err != nil {
		logrus.Fatalf("%+v", err)
	}
}

func dbnameWithPath(path string) string {
	if len(path) == 0 {
		return dbname
	}
	return filepath.Join(path, dbname)
}

func load() (*config.Config, error) {
	konf, err := config.Load(cfg, envfile)
	if err != nil {
		return nil, err
	}

	return konf, logging.Setup(logrus.StandardLogger(), konf.Logging())
}

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			return database.StormInit(dbnameWithPath(konf.DatabasePath))
		},
	}

	//
	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			return database.StormReIndex(dbnameWithPath(konf.DatabasePath))
		},
	}

	//
	//
	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Start server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			konf, err := load()
			if err != nil {
				return err
			}

			db, err := database.StormOpen(dbnameWithPath(konf.DatabasePath))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			table, err := sessionTable(konf)
			if err != nil {
				return err
			}

			m, err := mailer.New(konf.Mailer())
			if err != nil {
				return errors.Wrap(err, "could not create mailer")
			}

			sessions := session.NewManager(table, htpasswd.New(konf.Credentials()), m, db, konf.Manager())
			defer sessions.Close()

			engine := server.EchoEngine(server.IOC{
				Version:      version,
				Database:     db,
				Sessions:     sessions,
				CookieName:   konf.Session.CookieName,
				CookieSecure: strings.HasPrefix(konf.Origin, "https://"),
			})
			server.PrintRoutes(engine)

			return serve(engine.Server, engine.Start, konf.Address)
		},
	}
)

func sessionTable(konf *config.Config) (session.Table, error) {
	if konf.Session.Store != config.StoreRedis {
		return session.NewMemoryTable(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     konf.Redis.Address,
		Username: konf.Redis.Username,
		Password: konf.Redis.Password,
		DB:       konf.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "could not connect to redis")
	}

	return session.NewRedisTable(client, konf.Redis.Prefix, konf.Session.UnverifiedTTL), nil
}

// serve listens on a TCP address or on a unix socket (unix:/path/to/socket)
// until SIGINT or SIGTERM is received.
func serve(srv *http.Server, start func(string) error, address string) error {
	message := "could not run server"
	errc := make(chan error, 1)

	logrus.Infof("Server listening on %s", address)
	parts := strings.Split(address, ":")
	if len(parts) == 2 && parts[0] == "unix" {
		socketFile := parts[1]
		if _, err := os.Stat(socketFile); err == nil {
			logrus.Infof("Removing existing %s", socketFile)
			os.Remove(socketFile)
		}
		defer os.Remove(socketFile)

		listener, err := net.Listen(parts[0], socketFile)
		if err != nil {
			return err
		}
		go func() { errc <- srv.Serve(listener) }()
	} else {
		go func() { errc <- start(address) }()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case err := <-errc:
		return errors.Wrap(err, message)
	case sig := <-signals:
		logrus.Infof("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Wrap(srv.Shutdown(ctx), "could not shutdown server")
}
