package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairhall/console/authapi"
	"github.com/fairhall/console/internal/config"
	"github.com/fairhall/console/internal/devbackend"
	"github.com/fairhall/console/server"
	"github.com/fairhall/console/session"
	"github.com/fairhall/console/session/filestore"
	"github.com/fairhall/console/session/memorystore"
	"github.com/fairhall/console/session/redisstore"
	"github.com/fairhall/console/users"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	api, apiBaseURL, err := authAPI(c)
	if err != nil {
		return err
	}
	if apiBaseURL != c.GetAuthAPIURL() {
		// Mock mode picked an ephemeral port; the proxy reads the URL from
		// config, so point config at it too.
		os.Setenv("AUTH_API_URL", apiBaseURL)
	}

	backend, err := sessionBackend(c)
	if err != nil {
		return err
	}

	registry, err := session.NewRegistry(backend, api)
	if err != nil {
		return err
	}
	if err := registry.Restore(); err != nil {
		return err
	}
	log.Info().Int("sessions", registry.Len()).Msg("Session restore complete")

	consoleServer, err := server.New(c, registry, api)
	if err != nil {
		return err
	}

	go pruneSessions(consoleServer)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: consoleServer}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func setupLogging(c config.Config) {
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// authAPI builds the upstream client. In mock mode an in-process backend with
// seeded accounts is served on a loopback listener and the client points at
// it; the rest of the gateway cannot tell the difference.
func authAPI(c config.Config) (authapi.API, string, error) {
	if c.GetAuthMode() == config.AuthModeLive {
		url := c.GetAuthAPIURL()
		return authapi.New(url,
			authapi.WithTimeout(c.GetAuthTimeout()),
			authapi.WithLoginTimeout(c.GetLoginTimeout()),
		), url, nil
	}

	backend := devbackend.New()
	seeds := []struct {
		email string
		role  users.RoleType
	}{
		{"admin@fairhall.local", users.RoleAdmin},
		{"organizer@fairhall.local", users.RoleOrganizer},
		{"exhibitor@fairhall.local", users.RoleExhibitor},
	}
	for _, seed := range seeds {
		if _, err := backend.AddUser(seed.email, "Password123", seed.role); err != nil {
			return nil, "", err
		}
		log.Info().Str("email", seed.email).Str("role", string(seed.role)).Msg("Seeded mock account")
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", fmt.Errorf("mock backend listen: %w", err)
	}
	go func() {
		if err := http.Serve(listener, backend.Handler()); err != nil {
			log.Err(err).Msg("Mock backend stopped")
		}
	}()

	url := "http://" + listener.Addr().String()
	log.Info().Str("url", url).Msg("Mock auth backend running")
	return authapi.New(url), url, nil
}

func sessionBackend(c config.Config) (session.Backend, error) {
	switch c.GetSessionBackend() {
	case config.SessionBackendMemory:
		return memorystore.NewBackend(), nil
	case config.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return redisstore.NewBackend(client, redisstore.WithTTL(c.GetSessionTTL())), nil
	default:
		return filestore.NewBackend(c.GetDataFolder())
	}
}

const pruneInterval = 10 * time.Minute

func pruneSessions(consoleServer *server.Server) {
	for range time.Tick(pruneInterval) {
		if n := consoleServer.PruneSessions(); n > 0 {
			log.Info().Int("sessions", n).Msg("Pruned expired sessions")
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
