// Package live serves the dashboard websocket: appointment views pushed as the salon's data changes
// and foreground notifications for the signed-in user.
package live

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/bookinga/bookinga-backend/api/middleware"
	"github.com/bookinga/bookinga-backend/api/responses"
	"github.com/bookinga/bookinga-backend/internal/appointments"
	"github.com/bookinga/bookinga-backend/internal/foreground"
	pkgerrors "github.com/bookinga/bookinga-backend/pkg/errors"
	"github.com/bookinga/bookinga-backend/pkg/logger"
)

// Deps wires a live endpoint.
type Deps struct {
	Cache          *appointments.DataCache
	Store          appointments.Store
	Users          appointments.UserLookup
	Loader         appointments.LoaderConfig
	Listen         ListenFunc
	DedupCooldown  time.Duration
	ClickURL       string
	Location       *time.Location
	AllowedOrigins []string
	Logger         *logger.Logger
}

// Handler upgrades GET /salons/{salonID}/live. The initial filters come from the same query
// parameters as the appointments list.
func Handler(deps Deps) http.HandlerFunc {
	logg := deps.Logger
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(deps.AllowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Cache == nil || deps.Store == nil || logg == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "live session unavailable"))
			return
		}
		salonID := strings.TrimSpace(chi.URLParam(r, "salonID"))
		if salonID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "salon id is required"))
			return
		}
		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}
		q := r.URL.Query()
		filters, err := appointments.ParseFilters(q.Get("date"), q.Get("status"), q.Get("deleted"), q.Get("from"), q.Get("to"), deps.Location)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error()))
			return
		}

		ctx, cancel := context.WithCancel(logg.WithSalonID(r.Context(), salonID))
		defer cancel()

		s := newSession(salonID, userID, deps.Location, logg)
		fg, err := foreground.NewHandler(foreground.NewDeduplicator(deps.DedupCooldown), s, s, deps.ClickURL, logg)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		defer fg.Close()

		loaderCfg := deps.Loader
		loaderCfg.OnChange = s.onChange(ctx)
		loader, err := appointments.NewLoader(deps.Cache, deps.Store, deps.Users, logg, loaderCfg)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build loader"))
			return
		}
		defer loader.Close()
		s.loader, s.fg = loader, fg

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "live upgrade failed")
			return
		}
		s.conn = conn
		logg.Info(ctx, "live session opened")

		var pumps sync.WaitGroup
		pumps.Add(2)
		go func() {
			defer pumps.Done()
			s.writePump(ctx)
		}()
		go func() {
			defer pumps.Done()
			s.readPump(ctx)
		}()

		if deps.Listen != nil {
			pumps.Add(1)
			go func() {
				defer pumps.Done()
				if err := deps.Listen(ctx, s.handleEvent(ctx), s.channels()...); err != nil && ctx.Err() == nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "realtime subscription ended")
				}
			}()
		}

		loader.Load(ctx, salonID, filters)

		<-s.done
		cancel()
		waitPumps(&pumps, conn)
		logg.Info(ctx, "live session closed")
	}
}

// waitPumps gives the client writeWait to answer the close frame before the conn is torn down,
// which unblocks a read pump still waiting on the socket.
func waitPumps(pumps *sync.WaitGroup, conn *websocket.Conn) {
	finished := make(chan struct{})
	go func() {
		pumps.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(writeWait):
	}
	_ = conn.Close()
	<-finished
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	wildcard := len(allowed) == 0
	for _, origin := range allowed {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			wildcard = true
		}
		set[strings.ToLower(origin)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if wildcard || origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
