package fn

import (
	"context"
	"errors"
	"strconv"
	"testing"
)

// --- Result ---

func TestOkAndErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatal("wrong unwrap")
	}

	e := Err[int](errors.New("fail"))
	if e.IsOk() || !e.IsErr() {
		t.Fatal("Err should be err")
	}
	if v, _ := e.Unwrap(); v != 0 {
		t.Fatal("Err value should be zero")
	}
}

func TestUnwrapOr(t *testing.T) {
	if Ok(1).UnwrapOr(9) != 1 {
		t.Fatal("should return value")
	}
	if Err[int](errors.New("x")).UnwrapOr(9) != 9 {
		t.Fatal("should return fallback")
	}
}

func TestMapResult(t *testing.T) {
	r := MapResult(Ok(5), func(v int) string { return strconv.Itoa(v) })
	if r.UnwrapOr("") != "5" {
		t.Fatal("MapResult failed")
	}
	sentinel := errors.New("x")
	if _, err := MapResult(Err[int](sentinel), strconv.Itoa).Unwrap(); !errors.Is(err, sentinel) {
		t.Fatal("MapResult should keep the error")
	}
}

func TestFromPair(t *testing.T) {
	if !FromPair(1, nil).IsOk() {
		t.Fatal("nil error should be ok")
	}
	if FromPair(1, errors.New("x")).IsOk() {
		t.Fatal("error should be err")
	}
}

// --- Slices ---

func TestMap(t *testing.T) {
	out := Map([]int{1, 2, 3}, func(v int) int { return v * v })
	if len(out) != 3 || out[2] != 9 {
		t.Fatalf("Map = %v", out)
	}
}

func TestFilterNeverNil(t *testing.T) {
	out := Filter([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
	if len(out) != 2 || out[0] != 2 {
		t.Fatalf("Filter = %v", out)
	}
	if none := Filter([]int{1}, func(int) bool { return false }); none == nil {
		t.Fatal("Filter should return an empty slice, not nil")
	}
	if none := Filter[int](nil, func(int) bool { return true }); none == nil {
		t.Fatal("Filter of nil should be empty, not nil")
	}
}

func TestFilterMap(t *testing.T) {
	out := FilterMap([]string{"1", "x", "3"}, func(s string) (int, bool) {
		v, err := strconv.Atoi(s)
		return v, err == nil
	})
	if len(out) != 2 || out[0] != 1 || out[1] != 3 {
		t.Fatalf("FilterMap = %v", out)
	}
	if none := FilterMap[int, int](nil, func(v int) (int, bool) { return v, true }); none == nil {
		t.Fatal("FilterMap should never return nil")
	}
}

func TestFind(t *testing.T) {
	v, ok := Find([]int{5, 6, 7, 8}, func(v int) bool { return v > 6 })
	if !ok || v != 7 {
		t.Fatalf("Find = %d, %v", v, ok)
	}
	if _, ok := Find([]int{1}, func(v int) bool { return v > 1 }); ok {
		t.Fatal("Find should miss")
	}
}

type pair struct {
	key string
	val int
}

func TestIndexFirst(t *testing.T) {
	items := []pair{{"a", 1}, {"b", 2}, {"a", 3}, {"", 4}}
	idx := IndexFirst(items, func(p pair) (string, bool) { return p.key, p.key != "" })
	if len(idx) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(idx))
	}
	if idx["a"].val != 1 {
		t.Fatalf("first match should win, got %d", idx["a"].val)
	}
	if _, ok := idx[""]; ok {
		t.Fatal("skipped keys should not be indexed")
	}
}

func TestGroupBy(t *testing.T) {
	items := []pair{{"a", 1}, {"b", 2}, {"a", 3}, {"", 4}}
	g := GroupBy(items, func(p pair) (string, bool) { return p.key, p.key != "" })
	if len(g["a"]) != 2 || g["a"][0].val != 1 || g["a"][1].val != 3 {
		t.Fatalf("group a = %v", g["a"])
	}
	if len(g) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(g))
	}
	if len(GroupBy[int, int](nil, func(v int) (int, bool) { return v, true })) != 0 {
		t.Fatal("GroupBy of nil should be empty")
	}
}

func TestConcat(t *testing.T) {
	out := Concat([]int{1}, nil, []int{2, 3})
	if len(out) != 3 || out[0] != 1 || out[2] != 3 {
		t.Fatalf("Concat = %v", out)
	}
	if Concat[int]() == nil {
		t.Fatal("Concat should never return nil")
	}
}

// --- Stages ---

func TestThen(t *testing.T) {
	double := Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v * 2) })
	addOne := Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v + 1) })

	r := Then(double, addOne)(context.Background(), 5)
	if r.UnwrapOr(0) != 11 {
		t.Fatal("Then failed")
	}
}

func TestThenShortCircuits(t *testing.T) {
	fail := Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("fail")) })
	called := false
	second := Stage[int, int](func(_ context.Context, v int) Result[int] {
		called = true
		return Ok(v)
	})

	r := Then(fail, second)(context.Background(), 1)
	if r.IsOk() || called {
		t.Fatal("Then should short-circuit")
	}
}

func TestMapStage(t *testing.T) {
	s := MapStage(func(v int) string { return strconv.Itoa(v) })
	if s(context.Background(), 42).UnwrapOr("") != "42" {
		t.Fatal("MapStage failed")
	}
}

func TestTapStage(t *testing.T) {
	var captured int
	s := TapStage(func(_ context.Context, v int) { captured = v })
	if s(context.Background(), 7).UnwrapOr(0) != 7 || captured != 7 {
		t.Fatal("TapStage failed")
	}
}

func TestTracedStage(t *testing.T) {
	s := TracedStage("test-stage", Stage[int, int](func(_ context.Context, v int) Result[int] { return Ok(v + 1) }))
	if s(context.Background(), 1).UnwrapOr(0) != 2 {
		t.Fatal("TracedStage failed")
	}

	e := TracedStage("err-stage", Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("x")) }))
	if e(context.Background(), 1).IsOk() {
		t.Fatal("TracedStage error should propagate")
	}
}
