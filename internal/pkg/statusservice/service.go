package statusservice

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/gorilla/websocket"

	"github.com/voxexam/voxexam/internal/pkg/persistence"
	"github.com/voxexam/voxexam/internal/pkg/status"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// DB loads exam and pretest state for status reporting
type DB interface {
	LoadExam(ctx context.Context, id string) (*persistence.Exam, error)
	LoadPretest(ctx context.Context, id string) (*persistence.Pretest, error)
}

// WSConnHandler WebSocketConnection wrapper
type WSConnHandler interface {
	HandleConnection(WsConn) error
	GetConnections(id string) ([]WsConn, bool)
}

// Data keeps data required for service work
type Data struct {
	Port      int
	DB        DB
	WSHandler WSConnHandler
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Msgf("Starting HTTP VOXEXAM status service at %d", data.Port)
	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 10 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("vox_status", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.GET("/status/:id", statusHandler(data))
	e.GET("/live", live(data))
	e.GET("/subscribe", subscribeHandler(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

type slotResult struct {
	Num    int    `json:"num"`
	Status string `json:"status"`
}

type result struct {
	ID             string       `json:"id"`
	Status         string       `json:"status"`
	Slots          []slotResult `json:"slots,omitempty"`
	RecognizedText string       `json:"recognizedText,omitempty"`
}

func statusHandler(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("status method")()

		id := c.Param("id")
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "No ID")
		}
		res, err := loadResult(c.Request().Context(), data.DB, id)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError, "Service error")
		}
		if res == nil {
			res = &result{ID: id, Status: "NOT_FOUND"}
		}
		return c.JSON(http.StatusOK, res)
	}
}

// loadResult checks exams first, then pretests.
// Returns nil, nil when the ID is unknown in both.
func loadResult(ctx context.Context, db DB, id string) (*result, error) {
	ex, err := db.LoadExam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("can't load exam: %w", err)
	}
	if ex != nil {
		return mapExam(ex), nil
	}
	p, err := db.LoadPretest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("can't load pretest: %w", err)
	}
	if p != nil {
		return &result{ID: p.ID, Status: p.Status, RecognizedText: p.RecognizedText}, nil
	}
	return nil, nil
}

func mapExam(ex *persistence.Exam) *result {
	res := &result{ID: ex.ID, Status: overallStatus(ex.Slots)}
	for _, s := range ex.Slots {
		res.Slots = append(res.Slots, slotResult{Num: s.Num, Status: s.Status})
	}
	return res
}

func overallStatus(slots []persistence.Slot) string {
	for _, s := range slots {
		if !status.From(s.Status).Terminal() {
			return status.Handling.String()
		}
	}
	return status.Finished.String()
}

func validate(data *Data) error {
	if data.DB == nil {
		return fmt.Errorf("no DB")
	}
	if data.WSHandler == nil {
		return fmt.Errorf("no WSHandler")
	}
	return nil
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	}}

func subscribeHandler(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return err
		}
		defer ws.Close()

		return data.WSHandler.HandleConnection(ws)
	}
}
