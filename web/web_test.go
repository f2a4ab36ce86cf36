package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/modkit/core"
	"github.com/gocrud/modkit/di"
	"github.com/gocrud/modkit/logging"
	"github.com/gocrud/modkit/web"
)

// ---------------- Fixtures ----------------

// RequestContext 每个请求一个实例
type RequestContext struct {
	ID string
}

// Greeter 瞬态服务，依赖请求级的 RequestContext
type Greeter struct {
	Request *RequestContext
}

func NewGreeter(r *RequestContext) *Greeter {
	return &Greeter{Request: r}
}

type EchoController struct {
	Request *RequestContext
	Greeter *Greeter
}

func NewEchoController(r *RequestContext, g *Greeter) *EchoController {
	return &EchoController{Request: r, Greeter: g}
}

func (p *EchoController) Echo(c *gin.Context) {
	injected, err := web.Inject[*RequestContext](c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"controller": p.Request.ID,
		"greeter":    p.Greeter.Request.ID,
		"injected":   injected.ID,
	})
}

type FailingController struct{}

func (FailingController) NotFound(c *gin.Context) {
	_ = c.Error(web.NewNotFound("todo 7 not found"))
}

func (FailingController) Plain(c *gin.Context) {
	_ = c.Error(errors.New("connection reset"))
}

func (FailingController) Panic(*gin.Context) {
	panic("unexpected")
}

type BrokenController struct{}

func (*BrokenController) Get(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

type echoApp struct {
	app      *core.Application
	server   *web.Server
	created  *atomic.Int32
	disposed *atomic.Int32
}

// stamp 在中间件中解析请求上下文并写入响应头
func stamp(c *gin.Context) {
	rc, err := web.Inject[*RequestContext](c)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.Header("X-Middleware-ID", rc.ID)
	c.Next()
}

func newEchoApp(t *testing.T, opts ...web.Option) *echoApp {
	t.Helper()

	created, disposed := &atomic.Int32{}, &atomic.Int32{}
	requestModule := core.NewModule("RequestModule",
		core.Providers(di.Factory[*RequestContext](func() (*RequestContext, func()) {
			n := created.Add(1)
			return &RequestContext{ID: fmt.Sprintf("req-%d", n)}, func() { disposed.Add(1) }
		}, di.WithScoped())),
		core.Exports(di.TypeOf[*RequestContext]()),
	)
	feature := core.NewModule("FeatureModule",
		core.Imports(requestModule),
		core.Providers(di.Class[*Greeter](NewGreeter)),
		core.Controllers(
			web.NewController("/echo", NewEchoController,
				web.GET("", (*EchoController).Echo),
			),
			web.NewController[FailingController]("/fail", nil,
				web.GET("/not-found", FailingController.NotFound),
				web.GET("/plain", FailingController.Plain),
				web.GET("/panic", FailingController.Panic),
			),
			web.NewController("/broken", func() (*BrokenController, error) {
				return nil, errors.New("database unavailable")
			}, web.GET("", (*BrokenController).Get)),
		),
	)
	root := core.NewModule("Root", core.Imports(requestModule, feature))

	opts = append([]web.Option{
		web.WithMode(gin.TestMode),
		web.WithPrefix("/api"),
		web.WithMiddleware(stamp),
	}, opts...)
	app, err := core.New(root, core.WithLogger(logging.Nop()), web.New(opts...))
	require.NoError(t, err)
	require.NoError(t, app.Init(context.Background()))

	server, ok := core.GetFeature[*web.Server](app)
	require.True(t, ok, "web.Server should be registered as a feature")
	return &echoApp{app: app, server: server, created: created, disposed: disposed}
}

func (p *echoApp) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	p.server.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// ---------------- Tests ----------------

func TestScopedInstanceIsSharedAcrossMiddlewareWithinRequest(t *testing.T) {
	p := newEchoApp(t)

	first := p.get("/api/echo")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	second := p.get("/api/echo")
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())

	ids := func(w *httptest.ResponseRecorder) []string {
		body := decode(t, w)
		return []string{
			w.Header().Get("X-Middleware-ID"),
			body["controller"].(string),
			body["greeter"].(string),
			body["injected"].(string),
		}
	}

	a, b := ids(first), ids(second)
	for _, id := range a[1:] {
		assert.Equal(t, a[0], id, "ids within the first request must match")
	}
	for _, id := range b[1:] {
		assert.Equal(t, b[0], id, "ids within the second request must match")
	}
	assert.NotEqual(t, a[0], b[0])

	assert.NotEmpty(t, first.Header().Get(web.RequestIDHeader))
	assert.NotEqual(t, first.Header().Get(web.RequestIDHeader), second.Header().Get(web.RequestIDHeader))

	assert.Equal(t, int32(2), p.created.Load())
	assert.Equal(t, int32(2), p.disposed.Load(), "request scopes should be disposed")
}

func TestHTTPErrorMapping(t *testing.T) {
	p := newEchoApp(t)

	w := p.get("/api/fail/not-found")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, map[string]any{
		"code":    float64(404),
		"error":   "Not Found",
		"message": "todo 7 not found",
	}, decode(t, w))

	w = p.get("/api/fail/plain")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal Server Error", decode(t, w)["message"])

	w = p.get("/api/fail/panic")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, float64(500), decode(t, w)["code"])

	w = p.get("/api/broken")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "database unavailable")

	w = p.get("/api/nothing-here")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", decode(t, w)["error"])
}

func TestControllerRouteValidation(t *testing.T) {
	cases := map[string]web.Route[*EchoController]{
		"missing handler": {Method: http.MethodGet, Path: "/x"},
		"bad method":      web.Handle("get", "/x", (*EchoController).Echo),
	}
	for name, route := range cases {
		t.Run(name, func(t *testing.T) {
			root := core.NewModule("Root",
				core.Providers(di.Value(&RequestContext{}), di.Class[*Greeter](NewGreeter)),
				core.Controllers(web.NewController("/echo", NewEchoController, route)),
			)
			app, err := core.New(root, core.WithLogger(logging.Nop()))
			require.NoError(t, err)
			assert.ErrorContains(t, app.Init(context.Background()), "web:")
		})
	}
}

func TestConflictingRoutesFailMount(t *testing.T) {
	ctrl := func() *web.Controller[*BrokenController] {
		return web.NewController[*BrokenController]("/dup", nil, web.GET("", (*BrokenController).Get))
	}
	root := core.NewModule("Root", core.Controllers(ctrl(), ctrl()))
	app, err := core.New(root, core.WithLogger(logging.Nop()), web.New(web.WithMode(gin.TestMode)))
	require.NoError(t, err)
	assert.ErrorContains(t, app.Init(context.Background()), "挂载控制器")
}

func TestBuilderWithoutModules(t *testing.T) {
	server, err := web.NewBuilder().
		SetMode(gin.TestMode).
		UsePrefix("/v1").
		Get("/ping", func(c *gin.Context) {
			_, err := web.Inject[*Greeter](c)
			c.String(http.StatusOK, fmt.Sprint(errors.Is(err, web.ErrNoModule)))
		}).
		Build(nil, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Body.String())
}

func TestRoutesResolveFromRootModule(t *testing.T) {
	p := newEchoApp(t, web.WithRoutes(func(r gin.IRouter) {
		r.GET("/whoami", func(c *gin.Context) {
			rc, err := web.Inject[*RequestContext](c)
			if err != nil {
				_ = c.Error(err)
				return
			}
			c.String(http.StatusOK, rc.ID)
		})
	}))

	w := p.get("/api/whoami")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, w.Header().Get("X-Middleware-ID"), w.Body.String())
}

func TestServerLifecycle(t *testing.T) {
	p := newEchoApp(t, web.WithAddr("127.0.0.1:0"))
	ctx := context.Background()
	require.NoError(t, p.app.Start(ctx))

	select {
	case <-p.server.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start listening")
	}
	require.NotEmpty(t, p.server.Address())

	resp, err := http.Get("http://" + p.server.Address() + "/api/echo")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, p.app.Stop(stopCtx))

	_, err = http.Get("http://" + p.server.Address() + "/api/echo")
	assert.Error(t, err)
}

func TestHTTPErrorWrap(t *testing.T) {
	cause := errors.New("duplicate key")
	err := web.NewConflict("").Wrap(cause)

	assert.Equal(t, http.StatusConflict, err.Code)
	assert.Equal(t, "Conflict", err.Message)
	assert.ErrorIs(t, err, cause)

	var target *web.HTTPError
	assert.True(t, errors.As(fmt.Errorf("handler: %w", err), &target))
	assert.Equal(t, http.StatusBadRequest, web.NewBadRequest("x").Code)
	assert.Equal(t, http.StatusUnauthorized, web.NewUnauthorized("x").Code)
	assert.Equal(t, http.StatusForbidden, web.NewForbidden("x").Code)
	assert.Equal(t, http.StatusInternalServerError, web.NewInternal("x").Code)
}
