// Package httpapi is the HTTP surface consumed by external clients: the
// chi router and handlers that make the copier core runnable end-to-end.
// Routing and the bearer auth middleware are wired here even though they
// sit above the core domain logic, matching src/server/server.go's
// chi.NewRouter shape generalized with graceful shutdown.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logger "github.com/sirupsen/logrus"

	"github.com/tradecopier/copier/internal/account"
	"github.com/tradecopier/copier/internal/auth"
	"github.com/tradecopier/copier/internal/engine"
	"github.com/tradecopier/copier/internal/repository"
)

// Deps bundles every collaborator the router's handlers need.
type Deps struct {
	Accounts       *repository.TradingAccountRepository
	AccountManager *account.Manager
	Copiers        *repository.CopierRepository
	Configs        *repository.CopierAccountConfigRepository
	Trades         *repository.TradeRepository
	Mappings       *repository.TradeMappingRepository
	Engine         *engine.Engine
	AuthService    *auth.Service
	Users          *repository.UserRepository
}

// NewRouter builds the complete HTTP surface: auth, accounts, copiers,
// trades, and mapping lookups.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("healthcheck write failed")
		}
	})

	r.Route("/", func(api chi.Router) {
		api.Use(auth.Middleware(deps.AuthService, deps.Users))

		api.Route("/accounts", func(a chi.Router) {
			a.Post("/", CreateAccountHandler(deps.Accounts))
			a.Get("/", ListAccountsHandler(deps.Accounts))
			a.Post("/test-connection", TestConnectionHandler(deps.AccountManager))
			a.Post("/platforms/connect", ConnectPlatformHandler(deps.AccountManager))
			a.Post("/platforms/create-accounts", CreateAccountsFromPlatformHandler(deps.AccountManager))
			a.Get("/{id}", GetAccountHandler(deps.Accounts))
			a.Patch("/{id}", PatchAccountHandler(deps.Accounts))
			a.Delete("/{id}", DeleteAccountHandler(deps.AccountManager))
			a.Post("/{id}/connect", ConnectAccountHandler(deps.AccountManager))
			a.Post("/{id}/disconnect", DisconnectAccountHandler(deps.AccountManager))
		})

		api.Route("/copiers", func(c chi.Router) {
			c.Post("/", CreateCopierHandler(deps.Copiers))
			c.Get("/", ListCopiersHandler(deps.Copiers))
			c.Get("/{id}", GetCopierHandler(deps.Copiers))
			c.Patch("/{id}", PatchCopierHandler(deps.Copiers))
			c.Delete("/{id}", DeleteCopierHandler(deps.Copiers))
			c.Post("/{id}/start", StartCopierHandler(deps.Engine))
			c.Post("/{id}/stop", StopCopierHandler(deps.Engine))
			c.Post("/{id}/pause", PauseCopierHandler(deps.Engine))
			c.Post("/{id}/slaves", AddSlaveHandler(deps.Configs))
			c.Patch("/{id}/slaves/{slaveAccountId}", PatchSlaveHandler(deps.Configs))
			c.Delete("/{id}/slaves/{slaveAccountId}", RemoveSlaveHandler(deps.Configs))
		})

		api.Route("/trades", func(t chi.Router) {
			t.Get("/", ListTradesHandler(deps.Trades))
			t.Get("/history", ListTradesHandler(deps.Trades))
			t.Get("/mappings/{copierId}", ListMappingsForCopierHandler(deps.Mappings))
			t.Get("/{id}", GetTradeHandler(deps.Trades))
		})
	})

	return r
}

// Serve runs the router until SIGINT/SIGTERM, then drains in-flight
// requests before returning. Grounded on src/server/server.go's
// StartServer, generalized to take the router as a parameter instead of
// building one internally.
func Serve(addr string, handler http.Handler, shutdownTimeout time.Duration) {
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		logger.Infof("http api listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("http server crashed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down http api gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("http api shutdown error")
	}
}
