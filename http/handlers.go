package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"safedrive/frontend"
	"safedrive/ml"
)

//go:embed templates/*.html static/*
var assets embed.FS

var pageTemplate = template.Must(template.ParseFS(assets, "templates/index.html"))

type handlers struct {
	fe       *frontend.Frontend
	title    string
	language string
	logger   *zap.Logger

	// sessions is canceled when the server shuts down.
	sessions context.Context
	closeAll context.CancelFunc
}

func newHandlers(fe *frontend.Frontend, config ServerConfig, logger *zap.Logger) *handlers {
	ctx, cancel := context.WithCancel(context.Background())
	return &handlers{
		fe:       fe,
		title:    config.Title,
		language: config.Language,
		logger:   logger,
		sessions: ctx,
		closeAll: cancel,
	}
}

func RegisterHandlers(mux *http.ServeMux, h *handlers) {
	static, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /predict", h.handleFormPredict)
	mux.HandleFunc("POST /api/predict", h.handleAPIPredict)
	mux.HandleFunc("GET /api/bundle", h.handleBundle)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /ws/predict", h.handleWebSocket)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
}

func (h *handlers) localizer(r *http.Request) *frontend.Localizer {
	return frontend.NewLocalizer(frontend.MatchLanguage(r.Header.Get("Accept-Language"), h.language))
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.fe.Halted(); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "halted", "error": err.Error()})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleBundle(w http.ResponseWriter, r *http.Request) {
	if err := h.fe.Halted(); err != nil {
		WriteJSONError(w, http.StatusServiceUnavailable, h.localizer(r).Describe(err, h.fe.ArtifactPath()))
		return
	}
	WriteJSON(w, http.StatusOK, h.fe.Bundle().Info())
}

func (h *handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, nil)
}

func (h *handlers) handleFormPredict(w http.ResponseWriter, r *http.Request) {
	in, err := parseForm(r)
	if err != nil {
		h.renderPage(w, r, http.StatusBadRequest, &frontend.Outcome{State: frontend.Errored, Input: in, Err: err})
		return
	}
	outcome := h.fe.Submit(r.Context(), in)
	h.renderPage(w, r, statusFor(outcome.Err, h.fe), &outcome)
}

// predictResponse JSON预测响应
type predictResponse struct {
	Label      string         `json:"label"`
	Display    string         `json:"display"`
	Risk       ml.RiskLevel   `json:"risk"`
	Prediction int            `json:"prediction"`
	Model      ml.ModelChoice `json:"model"`
	Cached     bool           `json:"cached"`
}

func newPredictResponse(outcome frontend.Outcome, loc *frontend.Localizer) predictResponse {
	return predictResponse{
		Label:      outcome.Result.Label(),
		Display:    loc.RiskLabel(outcome.Result.Risk),
		Risk:       outcome.Result.Risk,
		Prediction: outcome.Result.Prediction,
		Model:      outcome.Result.Model,
		Cached:     outcome.Cached,
	}
}

func (h *handlers) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	loc := h.localizer(r)

	var in ml.UserInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&in); err != nil {
		err = fmt.Errorf("%w: %v", ml.ErrInvalidInput, err)
		if halted := h.fe.Halted(); halted != nil {
			err = halted
		}
		WriteJSONError(w, statusFor(err, h.fe), loc.Describe(err, h.fe.ArtifactPath()))
		return
	}

	outcome := h.fe.Submit(r.Context(), in)
	if outcome.Err != nil {
		WriteJSONError(w, statusFor(outcome.Err, h.fe), loc.Describe(outcome.Err, h.fe.ArtifactPath()))
		return
	}
	WriteJSON(w, http.StatusOK, newPredictResponse(outcome, loc))
}

// statusFor 将提交错误映射为HTTP状态码
func statusFor(err error, fe *frontend.Frontend) int {
	switch {
	case err == nil:
		return http.StatusOK
	case fe.Halted() != nil:
		return http.StatusServiceUnavailable
	case errors.Is(err, ml.ErrInvalidInput), errors.Is(err, ml.ErrUnknownModel):
		return http.StatusBadRequest
	case errors.Is(err, ml.ErrSchemaInconsistency), errors.Is(err, ml.ErrPrediction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseForm(r *http.Request) (ml.UserInput, error) {
	if err := r.ParseForm(); err != nil {
		return ml.UserInput{}, fmt.Errorf("%w: %v", ml.ErrInvalidInput, err)
	}
	in := ml.UserInput{
		VehicleType: r.PostFormValue("vehicle_type"),
		ModelChoice: ml.ModelChoice(r.PostFormValue("model")),
	}
	age, err := strconv.Atoi(r.PostFormValue("age"))
	if err != nil {
		return in, fmt.Errorf("%w: age %q is not an integer", ml.ErrInvalidInput, r.PostFormValue("age"))
	}
	in.VehicleAge = age
	return in, nil
}

type option struct {
	Value    string
	Label    string
	Selected bool
}

type resultView struct {
	Heading   string
	Label     string
	Risk      ml.RiskLevel
	ModelLine string
}

type pageView struct {
	Lang       string
	Title      string
	Subtitle   string
	Error      string
	Halted     bool
	AgeLabel   string
	MinAge     int
	MaxAge     int
	Age        int
	TypeLabel  string
	Types      []option
	ModelLabel string
	Models     []option
	Submit     string
	Result     *resultView
}

func (h *handlers) buildPage(r *http.Request, outcome *frontend.Outcome) pageView {
	loc := h.localizer(r)
	view := pageView{
		Lang:     loc.Tag().String(),
		Title:    h.title,
		Subtitle: loc.T(frontend.MsgSubtitle),
	}
	if err := h.fe.Halted(); err != nil {
		view.Halted = true
		view.Error = loc.Describe(err, h.fe.ArtifactPath())
		return view
	}

	in := ml.UserInput{VehicleAge: ml.DefaultVehicleAge, VehicleType: ml.VehicleTypes()[0], ModelChoice: ml.ModelChoices()[0]}
	if outcome != nil {
		in = outcome.Input
		if in.VehicleAge < ml.MinVehicleAge || in.VehicleAge > ml.MaxVehicleAge {
			in.VehicleAge = ml.DefaultVehicleAge
		}
	}

	view.AgeLabel = loc.T(frontend.MsgAgeLabel)
	view.MinAge, view.MaxAge, view.Age = ml.MinVehicleAge, ml.MaxVehicleAge, in.VehicleAge
	view.TypeLabel = loc.T(frontend.MsgTypeLabel)
	for _, vt := range ml.VehicleTypes() {
		view.Types = append(view.Types, option{Value: vt, Label: vt, Selected: vt == in.VehicleType})
	}
	view.ModelLabel = loc.T(frontend.MsgModelLabel)
	for _, choice := range ml.ModelChoices() {
		view.Models = append(view.Models, option{Value: string(choice), Label: string(choice), Selected: choice == in.ModelChoice})
	}
	view.Submit = loc.T(frontend.MsgSubmit)

	if outcome == nil {
		return view
	}
	switch outcome.State {
	case frontend.Rendered:
		view.Result = &resultView{
			Heading:   loc.T(frontend.MsgResultHeading),
			Label:     loc.RiskLabel(outcome.Result.Risk),
			Risk:      outcome.Result.Risk,
			ModelLine: loc.T(frontend.MsgModelUsed, string(outcome.Result.Model)),
		}
	case frontend.Errored:
		view.Error = loc.Describe(outcome.Err, h.fe.ArtifactPath())
	}
	return view
}

func (h *handlers) renderPage(w http.ResponseWriter, r *http.Request, status int, outcome *frontend.Outcome) {
	view := h.buildPage(r, outcome)
	if view.Halted {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Language", view.Lang)
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, view); err != nil {
		h.logger.Error("render page", zap.String("request_id", GetRequestID(r.Context())), zap.Error(err))
	}
}
