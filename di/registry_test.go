package di_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gocrud/modkit/di"
)

type Counter struct {
	ID int
}

var counterSeq atomic.Int64

func NewCounter() *Counter {
	return &Counter{ID: int(counterSeq.Add(1))}
}

type Greeter interface {
	Greet() string
}

type englishGreeter struct{ c *Counter }

func (g *englishGreeter) Greet() string { return "hello" }

type Service struct {
	Counter *Counter `di:""`
	Greeter Greeter  `di:"?"`
	Label   string   `di:"label,optional"`
	plain   int
}

func TestLifetimeTransient(t *testing.T) {
	r := di.NewRegistry("test")
	r.MustRegister(di.Class[*Counter](NewCounter))

	ctx := context.Background()
	a := di.MustResolve[*Counter](ctx, r, nil)
	b := di.MustResolve[*Counter](ctx, r, nil)
	if a == b {
		t.Fatalf("transient resolved the same instance twice")
	}
}

func TestLifetimeSingleton(t *testing.T) {
	r := di.NewRegistry("test")
	r.MustRegister(di.Class[*Counter](NewCounter, di.WithSingleton()))

	ctx := context.Background()
	first := di.MustResolve[*Counter](ctx, r, nil)
	for _, scope := range []*di.Scope{nil, di.NewScope(), di.NewScope()} {
		got, err := di.Resolve[*Counter](ctx, r, scope)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if got != first {
			t.Fatalf("singleton returned a different instance")
		}
	}
}

func TestLifetimeScoped(t *testing.T) {
	r := di.NewRegistry("test")
	r.MustRegister(di.Class[*Counter](NewCounter, di.WithScoped()))

	ctx := context.Background()
	s1, s2 := di.NewScope(), di.NewScope()

	a1 := di.MustResolve[*Counter](ctx, r, s1)
	a2 := di.MustResolve[*Counter](ctx, r, s1)
	b := di.MustResolve[*Counter](ctx, r, s2)

	if a1 != a2 {
		t.Fatalf("scoped returned different instances within one scope")
	}
	if a1 == b {
		t.Fatalf("scoped returned the same instance across scopes")
	}
	if s1.ID() == s2.ID() {
		t.Fatalf("scope ids must be unique")
	}
}

func TestScopedWithoutScope(t *testing.T) {
	r := di.NewRegistry("billing")
	r.MustRegister(di.Class[*Counter](NewCounter, di.WithScoped()))

	_, err := di.Resolve[*Counter](context.Background(), r, nil)
	var missing *di.MissingScopeError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingScopeError, got %v", err)
	}
	if missing.Module != "billing" {
		t.Fatalf("unexpected module %q", missing.Module)
	}
}

func TestUnresolvedToken(t *testing.T) {
	r := di.NewRegistry("orders")

	_, err := r.Resolve(context.Background(), "missing", nil)
	var unresolved *di.UnresolvedTokenError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedTokenError, got %v", err)
	}
	if unresolved.Token != "missing" || unresolved.Module != "orders" {
		t.Fatalf("unexpected error fields: %+v", unresolved)
	}
}

func TestValueAndAlias(t *testing.T) {
	r := di.NewRegistry("test")
	g := &englishGreeter{}
	r.MustRegister(
		&di.ValueProvider{Provide: di.TypeOf[Greeter](), UseValue: g},
		di.Alias("greeter", di.TypeOf[Greeter]()),
	)

	got, err := di.ResolveAs[Greeter](context.Background(), r, "greeter", nil)
	if err != nil {
		t.Fatalf("resolve alias failed: %v", err)
	}
	if got != g {
		t.Fatalf("alias did not forward to the value")
	}
}

func TestFactoryDependencies(t *testing.T) {
	r := di.NewRegistry("test")
	label := di.NewToken[string]("label")

	r.MustRegister(
		di.Class[*Counter](NewCounter, di.WithSingleton()),
		&di.ValueProvider{Provide: label, UseValue: "primary"},
		&di.FactoryProvider{
			Provide: "summary",
			UseFactory: func(ctx context.Context, c *Counter, l string) (string, error) {
				if ctx == nil {
					return "", errors.New("missing context")
				}
				return l, nil
			},
			Deps: []di.InjectionToken{nil, nil, label},
		},
	)

	got, err := di.ResolveAs[string](context.Background(), r, "summary", nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got != "primary" {
		t.Fatalf("expected primary, got %q", got)
	}
}

func TestFactoryError(t *testing.T) {
	r := di.NewRegistry("test")
	boom := errors.New("boom")
	r.MustRegister(di.Factory[*Counter](func() (*Counter, error) { return nil, boom }, di.WithSingleton()))

	_, err := di.Resolve[*Counter](context.Background(), r, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}

	// 失败的构造不缓存
	r.MustRegister(di.Factory[*Counter](NewCounter, di.WithSingleton()))
	if _, err := di.Resolve[*Counter](context.Background(), r, nil); err != nil {
		t.Fatalf("resolve after re-register failed: %v", err)
	}
}

func TestStructInjection(t *testing.T) {
	r := di.NewRegistry("test")
	r.MustRegister(
		di.Class[*Counter](NewCounter, di.WithSingleton()),
		di.Class[*Service](nil),
	)

	svc := di.MustResolve[*Service](context.Background(), r, nil)
	if svc.Counter == nil {
		t.Fatalf("counter not injected")
	}
	if svc.Greeter != nil || svc.Label != "" {
		t.Fatalf("optional fields should stay zero")
	}

	r.MustRegister(&di.ValueProvider{Provide: "label", UseValue: "x"})
	svc = di.MustResolve[*Service](context.Background(), r, nil)
	if svc.Label != "x" {
		t.Fatalf("named field not injected, got %q", svc.Label)
	}
}

func TestLastWriteWins(t *testing.T) {
	r := di.NewRegistry("test")
	r.MustRegister(
		&di.ValueProvider{Provide: "name", UseValue: "first"},
		&di.ValueProvider{Provide: "other", UseValue: "other"},
		&di.ValueProvider{Provide: "name", UseValue: "second"},
	)

	got, _ := di.ResolveAs[string](context.Background(), r, "name", nil)
	if got != "second" {
		t.Fatalf("expected last registration to win, got %q", got)
	}
	tokens := r.Tokens()
	if len(tokens) != 2 || tokens[0] != "name" {
		t.Fatalf("unexpected declaration order %v", tokens)
	}
}

type cyclicA struct{ B *cyclicB }
type cyclicB struct{ A *cyclicA }

func TestCircularDependency(t *testing.T) {
	r := di.NewRegistry("test")
	r.MustRegister(
		di.Class[*cyclicA](func(b *cyclicB) *cyclicA { return &cyclicA{B: b} }),
		di.Class[*cyclicB](func(a *cyclicA) *cyclicB { return &cyclicB{A: a} }, di.WithSingleton()),
	)

	_, err := di.Resolve[*cyclicA](context.Background(), r, nil)
	var cycle *di.CircularDependencyError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CircularDependencyError, got %v", err)
	}
	if len(cycle.Path) != 3 {
		t.Fatalf("unexpected path %v", cycle.Path)
	}
}

func TestCleanupOrder(t *testing.T) {
	r := di.NewRegistry("test")
	var closed []string

	r.MustRegister(
		di.Factory[*Counter](func() (*Counter, func(), error) {
			return NewCounter(), func() { closed = append(closed, "singleton") }, nil
		}, di.WithSingleton()),
		&di.FactoryProvider{
			Provide: "conn",
			UseFactory: func(c *Counter) (string, func() error) {
				return "conn", func() error { closed = append(closed, "scoped"); return nil }
			},
			Scope: di.ScopeScoped,
		},
	)

	ctx := context.Background()
	scope := di.NewScope()
	if _, err := r.Resolve(ctx, "conn", scope); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if err := scope.Dispose(); err != nil {
		t.Fatalf("dispose failed: %v", err)
	}
	if _, err := r.Resolve(ctx, "conn", scope); !errors.Is(err, di.ErrScopeDisposed) {
		t.Fatalf("expected ErrScopeDisposed, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if len(closed) != 2 || closed[0] != "scoped" || closed[1] != "singleton" {
		t.Fatalf("unexpected cleanup order %v", closed)
	}
}

func TestTransientCleanupRequiresScope(t *testing.T) {
	r := di.NewRegistry("test")
	var closed atomic.Int32
	r.MustRegister(di.Factory[*Counter](func() (*Counter, func()) {
		return NewCounter(), func() { closed.Add(1) }
	}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(ctx, di.TypeOf[*Counter](), nil); !errors.Is(err, di.ErrUnscopedCleanup) {
			t.Fatalf("expected ErrUnscopedCleanup, got %v", err)
		}
	}
	if closed.Load() != 3 {
		t.Fatalf("rejected instances should be released immediately, got %d", closed.Load())
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if closed.Load() != 3 {
		t.Fatalf("registry must not keep transient cleanups, got %d", closed.Load())
	}

	scope := di.NewScope()
	if _, err := r.Resolve(ctx, di.TypeOf[*Counter](), scope); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if err := scope.Dispose(); err != nil {
		t.Fatalf("dispose failed: %v", err)
	}
	if closed.Load() != 4 {
		t.Fatalf("scope should release the transient, got %d", closed.Load())
	}
}

func TestSingletonInitGuard(t *testing.T) {
	r := di.NewRegistry("test")
	var calls atomic.Int32
	r.MustRegister(di.Factory[*Counter](func() *Counter {
		calls.Add(1)
		return NewCounter()
	}, di.WithSingleton()))

	var wg sync.WaitGroup
	results := make([]*Counter, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = di.MustResolve[*Counter](context.Background(), r, nil)
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("factory called %d times", calls.Load())
	}
	for _, c := range results {
		if c != results[0] {
			t.Fatalf("concurrent resolution produced different instances")
		}
	}
}

func TestScopedInitGuard(t *testing.T) {
	r := di.NewRegistry("test")
	var calls atomic.Int32
	r.MustRegister(di.Factory[*Counter](func() *Counter {
		calls.Add(1)
		return NewCounter()
	}, di.WithScoped()))

	scope := di.NewScope()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = di.MustResolve[*Counter](context.Background(), r, scope)
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("factory called %d times within one scope", calls.Load())
	}
}

func TestInvalidProviders(t *testing.T) {
	r := di.NewRegistry("test")
	cases := map[string]di.Provider{
		"empty token":      &di.ValueProvider{Provide: "", UseValue: 1},
		"nil value":        &di.ValueProvider{Provide: "x"},
		"bad factory":      &di.FactoryProvider{Provide: "x", UseFactory: 42},
		"no return":        &di.FactoryProvider{Provide: "x", UseFactory: func() {}},
		"type mismatch":    di.Factory[*Counter](func() string { return "" }),
		"self alias":       di.Alias("x", "x"),
		"deps mismatch":    di.Factory[*Counter](func(int) *Counter { return nil }, di.WithDeps("a", "b")),
		"string class":     &di.ClassProvider{Provide: "x"},
		"unsupported kind": &di.ValueProvider{Provide: 3.14, UseValue: 1},
	}
	for name, p := range cases {
		if err := r.Register(p); err == nil {
			t.Errorf("%s: expected registration error", name)
		}
	}
}

func TestScopeContext(t *testing.T) {
	if _, ok := di.ScopeFrom(context.Background()); ok {
		t.Fatalf("empty context should not carry a scope")
	}
	scope := di.NewScope()
	got, ok := di.ScopeFrom(di.ContextWithScope(context.Background(), scope))
	if !ok || got != scope {
		t.Fatalf("scope not round-tripped through context")
	}
}

func TestInfo(t *testing.T) {
	r := di.NewRegistry("test")
	r.MustRegister(di.Class[*Counter](NewCounter, di.WithScoped()))

	info, ok := r.Info(di.TypeOf[*Counter]())
	if !ok {
		t.Fatalf("info missing")
	}
	if info.Kind != di.ProviderTypeClass || info.Scope != di.ScopeScoped || info.Type != di.TypeOf[*Counter]() {
		t.Fatalf("unexpected info %+v", info)
	}
}
