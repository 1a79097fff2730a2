package examservice

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/minio/minio-go/v7"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/voxexam/voxexam/internal/pkg/exam"
	"github.com/voxexam/voxexam/internal/pkg/persistence"
)

// Engine is the exam session core consumed by the transport
type Engine interface {
	Assemble(ctx context.Context, userID, templateID string) (string, error)
	GetQuestionInfo(ctx context.Context, examID string, num int) (*exam.QuestionInfo, error)
	GetUploadPath(ctx context.Context, examID, userID string, num int) (string, error)
	GetAudioPath(ctx context.Context, examID string, num int) (string, error)
	GetResult(ctx context.Context, examID string) (*exam.Result, error)
	GetRecords(ctx context.Context, userID string) ([]exam.Record, error)
	StartPretest(ctx context.Context, userID string) (*persistence.Pretest, error)
	GetPretest(ctx context.Context, id string) (*persistence.Pretest, error)
	CreateTemplate(ctx context.Context, name string, duration int, reqs []persistence.QuestionReq) (string, error)
	UpdateTemplate(ctx context.Context, id, name string, duration int, reqs []persistence.QuestionReq) error
	DeprecateTemplate(ctx context.Context, id string) error
}

// FileReader loads answer audio by path
type FileReader interface {
	LoadFile(ctx context.Context, name string) (io.ReadSeekCloser, error)
}

// Data keeps data required for service work
type Data struct {
	Port   int
	Engine Engine
	Reader FileReader
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Int("port", data.Port).Msg("Starting HTTP VOXEXAM exam service")
	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.WriteTimeout = 5 * time.Minute

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.Engine == nil {
		return errors.New("no exam engine")
	}
	if data.Reader == nil {
		return errors.New("no file reader")
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("vox_exam", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.POST("/exam", startExam(data))
	e.GET("/exam/:id/question/:num", questionInfo(data))
	e.GET("/exam/:id/upload-path", uploadPath(data))
	e.GET("/exam/:id/result", result(data))
	e.GET("/exams", records(data))
	e.POST("/pretest", startPretest(data))
	e.GET("/pretest/:id", pretest(data))
	e.GET("/audio/:id/:num", downloadAudio(data))
	e.HEAD("/audio/:id/:num", downloadAudio(data))
	e.POST("/template", createTemplate(data))
	e.PUT("/template/:id", updateTemplate(data))
	e.DELETE("/template/:id", deprecateTemplate(data))
	e.GET("/live", live(data))

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

type errorBody struct {
	StatusCode int    `json:"statusCode"`
	StatusMsg  string `json:"statusMsg"`
}

// respondErr maps typed engine failures to HTTP, keeping the legacy
// numeric code in the body
func respondErr(c echo.Context, err error) error {
	var ee *exam.Error
	if errors.As(err, &ee) {
		if ee != exam.ErrInProcessing {
			goapp.Log.Error().Err(err).Send()
		}
		return c.JSON(httpCode(ee.Code), errorBody{StatusCode: ee.Code, StatusMsg: ee.Msg})
	}
	goapp.Log.Error().Err(err).Send()
	return c.JSON(http.StatusInternalServerError,
		errorBody{StatusCode: exam.ErrInternal.Code, StatusMsg: exam.ErrInternal.Msg})
}

func httpCode(code int) int {
	switch code {
	case exam.ErrInvalidParam.Code:
		return http.StatusBadRequest
	case exam.ErrExamNotExist.Code:
		return http.StatusNotFound
	case exam.ErrExamFinished.Code, exam.ErrInitExamFailed.Code:
		return http.StatusConflict
	case exam.ErrInProcessing.Code:
		return http.StatusAccepted
	}
	return http.StatusInternalServerError
}

type startExamInput struct {
	UserID     string `json:"userID"`
	TemplateID string `json:"templateID"`
}

type startExamResult struct {
	ID string `json:"id"`
}

func startExam(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("startExam method")()
		var inp startExamInput
		if err := c.Bind(&inp); err != nil {
			return respondErr(c, exam.ErrInvalidParam)
		}
		id, err := data.Engine.Assemble(c.Request().Context(), inp.UserID, inp.TemplateID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(http.StatusOK, startExamResult{ID: id})
	}
}

type questionResult struct {
	Num        int    `json:"num"`
	Type       int    `json:"type"`
	Text       string `json:"text"`
	ReadTime   int    `json:"readTime"`
	AnswerTime int    `json:"answerTime"`
	Tip        string `json:"tip,omitempty"`
	IsLast     bool   `json:"isLast"`
	Duration   int    `json:"duration"`
	Remaining  int    `json:"remaining"`
}

func questionInfo(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("questionInfo method")()
		num, err := strconv.Atoi(c.Param("num"))
		if err != nil {
			return respondErr(c, exam.ErrInvalidParam)
		}
		qi, err := data.Engine.GetQuestionInfo(c.Request().Context(), c.Param("id"), num)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(http.StatusOK, questionResult{Num: qi.Num, Type: qi.Type, Text: qi.Text,
			ReadTime: qi.ReadTime, AnswerTime: qi.AnswerTime, Tip: qi.Tip, IsLast: qi.IsLast,
			Duration: qi.Duration, Remaining: qi.Remaining})
	}
}

type uploadPathResult struct {
	Path string `json:"path"`
}

func uploadPath(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("uploadPath method")()
		num, err := strconv.Atoi(c.QueryParam("slot"))
		if err != nil {
			return respondErr(c, exam.ErrInvalidParam)
		}
		path, err := data.Engine.GetUploadPath(c.Request().Context(), c.Param("id"),
			c.QueryParam("userID"), num)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(http.StatusOK, uploadPathResult{Path: path})
	}
}

type scoreResult struct {
	Quality   float64 `json:"quality"`
	Key       float64 `json:"key"`
	Detail    float64 `json:"detail"`
	Structure float64 `json:"structure"`
	Logic     float64 `json:"logic"`
	Total     float64 `json:"total"`
}

type resultResult struct {
	ID     string       `json:"id"`
	Score  scoreResult  `json:"score"`
	Report *exam.Report `json:"report"`
}

func result(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("result method")()
		res, err := data.Engine.GetResult(c.Request().Context(), c.Param("id"))
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(http.StatusOK, mapResult(res))
	}
}

func mapResult(res *exam.Result) resultResult {
	return resultResult{ID: res.ExamID, Score: scoreResult{Quality: res.Score.Quality,
		Key: res.Score.Key, Detail: res.Score.Detail, Structure: res.Score.Structure,
		Logic: res.Score.Logic, Total: res.Score.Total}, Report: res.Report}
}

type recordResult struct {
	ID         string      `json:"id"`
	TemplateID string      `json:"templateID"`
	Started    time.Time   `json:"started"`
	Score      scoreResult `json:"score"`
}

func records(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("records method")()
		userID := c.QueryParam("userID")
		recs, err := data.Engine.GetRecords(c.Request().Context(), userID)
		if err != nil {
			return respondErr(c, err)
		}
		res := []recordResult{}
		for _, r := range recs {
			res = append(res, recordResult{ID: r.ExamID, TemplateID: r.TemplateID, Started: r.Started,
				Score: scoreResult{Quality: r.Score.Quality, Key: r.Score.Key, Detail: r.Score.Detail,
					Structure: r.Score.Structure, Logic: r.Score.Logic, Total: r.Score.Total}})
		}
		return c.JSON(http.StatusOK, res)
	}
}

type startPretestInput struct {
	UserID string `json:"userID"`
}

type pretestResult struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	Path           string `json:"path"`
	Status         string `json:"status"`
	RecognizedText string `json:"recognizedText,omitempty"`
}

func startPretest(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("startPretest method")()
		var inp startPretestInput
		if err := c.Bind(&inp); err != nil {
			return respondErr(c, exam.ErrInvalidParam)
		}
		p, err := data.Engine.StartPretest(c.Request().Context(), inp.UserID)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(http.StatusOK, mapPretest(p))
	}
}

func pretest(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("pretest method")()
		p, err := data.Engine.GetPretest(c.Request().Context(), c.Param("id"))
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(http.StatusOK, mapPretest(p))
	}
}

func mapPretest(p *persistence.Pretest) pretestResult {
	return pretestResult{ID: p.ID, Text: p.Text, Path: p.UploadPath, Status: p.Status,
		RecognizedText: p.RecognizedText}
}

type templateInput struct {
	Name      string                    `json:"name"`
	Duration  int                       `json:"duration"`
	Questions []persistence.QuestionReq `json:"questions"`
}

func createTemplate(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("createTemplate method")()
		var inp templateInput
		if err := c.Bind(&inp); err != nil {
			return respondErr(c, exam.ErrInvalidParam)
		}
		id, err := data.Engine.CreateTemplate(c.Request().Context(), inp.Name, inp.Duration, inp.Questions)
		if err != nil {
			return respondErr(c, err)
		}
		return c.JSON(http.StatusOK, startExamResult{ID: id})
	}
}

func updateTemplate(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("updateTemplate method")()
		var inp templateInput
		if err := c.Bind(&inp); err != nil {
			return respondErr(c, exam.ErrInvalidParam)
		}
		if err := data.Engine.UpdateTemplate(c.Request().Context(), c.Param("id"), inp.Name,
			inp.Duration, inp.Questions); err != nil {
			return respondErr(c, err)
		}
		return c.JSON(http.StatusOK, startExamResult{ID: c.Param("id")})
	}
}

func deprecateTemplate(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("deprecateTemplate method")()
		if err := data.Engine.DeprecateTemplate(c.Request().Context(), c.Param("id")); err != nil {
			return respondErr(c, err)
		}
		return c.String(http.StatusOK, "deprecated")
	}
}

func downloadAudio(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("downloadAudio method")()
		num, err := strconv.Atoi(c.Param("num"))
		if err != nil {
			return respondErr(c, exam.ErrInvalidParam)
		}
		path, err := data.Engine.GetAudioPath(c.Request().Context(), c.Param("id"), num)
		if err != nil {
			return respondErr(c, err)
		}
		return serveFile(c, data, path)
	}
}

func serveFile(c echo.Context, data *Data, name string) error {
	goapp.Log.Info().Str("file", name).Msg("loading")
	file, err := data.Reader.LoadFile(c.Request().Context(), name)
	if err != nil {
		if isNotFound(err) {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		goapp.Log.Error().Err(err).Send()
		return echo.NewHTTPError(http.StatusInternalServerError, "Can't get file")
	}
	defer file.Close()
	stGetter, ok := file.(interface{ Stat() (fs.FileInfo, error) })
	if !ok {
		goapp.Log.Error().Msg(`file does implement "interface{ Stat() (fs.FileInfo, error)"`)
		return echo.NewHTTPError(http.StatusInternalServerError, "Can't get file stat")
	}
	stat, err := stGetter.Stat()
	if err != nil {
		if isNotFound(err) {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		goapp.Log.Error().Err(err).Send()
		return echo.NewHTTPError(http.StatusInternalServerError, "Can't get file stat")
	}

	w := c.Response()
	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(stat.Name()))
	http.ServeContent(w, c.Request(), stat.Name(), stat.ModTime(), file)
	return nil
}

func isNotFound(err error) bool {
	var errResp minio.ErrorResponse
	if errors.As(err, &errResp) {
		return errResp.StatusCode == http.StatusNotFound
	}
	return false
}
