package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// RunAction is the action path parameter of POST /runs/{runId}/actions/{action}.
type RunAction string

const (
	RunActionNext     RunAction = "next"
	RunActionBack     RunAction = "back"
	RunActionSkip     RunAction = "skip"
	RunActionGoto     RunAction = "goto"
	RunActionComplete RunAction = "complete"
	RunActionCancel   RunAction = "cancel"
	RunActionReset    RunAction = "reset"
)

// RunActionParams holds the query parameters of runAction.
type RunActionParams struct {
	Step *string `form:"step,omitempty" json:"step,omitempty"`
}

// SubscribeEventsParams holds the query parameters of subscribeEvents.
type SubscribeEventsParams struct {
	Watch *string `form:"watch,omitempty" json:"watch,omitempty"`
}

// ServerInterface lists the operations of openapi.yaml.
type ServerInterface interface {
	GetHealth(w http.ResponseWriter, r *http.Request)
	GetInfo(w http.ResponseWriter, r *http.Request)
	ListFlows(w http.ResponseWriter, r *http.Request)
	GetFlowGraph(w http.ResponseWriter, r *http.Request, flow string)
	StartRun(w http.ResponseWriter, r *http.Request, flow string)
	ListRuns(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request, runID string)
	DeleteRun(w http.ResponseWriter, r *http.Request, runID string)
	UpdateRunData(w http.ResponseWriter, r *http.Request, runID string)
	RunAction(w http.ResponseWriter, r *http.Request, runID string, action RunAction, params RunActionParams)
	GetRunGraph(w http.ResponseWriter, r *http.Request, runID string)
	SubscribeEvents(w http.ResponseWriter, r *http.Request, runID string, params SubscribeEventsParams)
}

// InvalidParamFormatError reports a parameter that could not be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// wrapper binds path and query parameters before calling the server.
type wrapper struct {
	handler      ServerInterface
	errorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

func (sw *wrapper) pathParam(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		sw.errorHandler(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

func (sw *wrapper) queryParam(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		sw.errorHandler(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

func (sw *wrapper) getFlowGraph(w http.ResponseWriter, r *http.Request) {
	var flow string
	if sw.pathParam(w, r, "flow", &flow) {
		sw.handler.GetFlowGraph(w, r, flow)
	}
}

func (sw *wrapper) startRun(w http.ResponseWriter, r *http.Request) {
	var flow string
	if sw.pathParam(w, r, "flow", &flow) {
		sw.handler.StartRun(w, r, flow)
	}
}

func (sw *wrapper) runHandler(fn func(w http.ResponseWriter, r *http.Request, runID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var runID string
		if sw.pathParam(w, r, "runId", &runID) {
			fn(w, r, runID)
		}
	}
}

func (sw *wrapper) runAction(w http.ResponseWriter, r *http.Request) {
	var (
		runID  string
		action RunAction
		params RunActionParams
	)
	if !sw.pathParam(w, r, "runId", &runID) || !sw.pathParam(w, r, "action", &action) {
		return
	}
	if !sw.queryParam(w, r, "step", &params.Step) {
		return
	}
	sw.handler.RunAction(w, r, runID, action, params)
}

func (sw *wrapper) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	var (
		runID  string
		params SubscribeEventsParams
	)
	if !sw.pathParam(w, r, "runId", &runID) || !sw.queryParam(w, r, "watch", &params.Watch) {
		return
	}
	sw.handler.SubscribeEvents(w, r, runID, params)
}

// HandlerFromMux mounts every operation of si on r.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	sw := &wrapper{
		handler: si,
		errorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			writeError(w, http.StatusBadRequest, err)
		},
	}

	r.Get("/health", si.GetHealth)
	r.Get("/info", si.GetInfo)
	r.Get("/flows", si.ListFlows)
	r.Get("/flows/{flow}/graph", sw.getFlowGraph)
	r.Post("/flows/{flow}/runs", sw.startRun)
	r.Get("/runs", si.ListRuns)
	r.Get("/runs/{runId}", sw.runHandler(si.GetRun))
	r.Delete("/runs/{runId}", sw.runHandler(si.DeleteRun))
	r.Patch("/runs/{runId}/data", sw.runHandler(si.UpdateRunData))
	r.Post("/runs/{runId}/actions/{action}", sw.runAction)
	r.Get("/runs/{runId}/graph", sw.runHandler(si.GetRunGraph))
	r.Get("/runs/{runId}/events", sw.subscribeEvents)
	return r
}
