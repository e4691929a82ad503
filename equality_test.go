package querycache

import (
	"math"
	"testing"
	"time"
)

type getOrders struct {
	CustomerID int
	Since      time.Time
	Statuses   []string
	Filter     *orderFilter
}

type orderFilter struct {
	MinTotal float64
	Tags     map[string]bool
}

type getInvoices struct {
	CustomerID int
}

type otherInvoices struct {
	CustomerID int
}

func TestEqual_SeparatelyBuiltValues(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	build := func() getOrders {
		return getOrders{
			CustomerID: 7,
			Since:      since,
			Statuses:   []string{"open", "paid"},
			Filter:     &orderFilter{MinTotal: 10, Tags: map[string]bool{"vip": true}},
		}
	}
	a, b := build(), build()
	if !Equal(a, b) {
		t.Fatalf("want equal")
	}
	if Hash(a) != Hash(b) {
		t.Fatalf("equal values must hash alike")
	}
	if !Equal(&a, &b) {
		t.Fatalf("pointers to equal values must be equal")
	}

	b.Statuses[1] = "void"
	if Equal(a, b) {
		t.Fatalf("changed slice element must break equality")
	}
	b = build()
	b.Filter.Tags["vip"] = false
	if Equal(a, b) {
		t.Fatalf("changed nested map value must break equality")
	}
}

func TestEqual_TypesAndNils(t *testing.T) {
	if Equal(getInvoices{1}, otherInvoices{1}) {
		t.Fatalf("different types must not be equal")
	}
	if Hash(getInvoices{1}) == Hash(otherInvoices{1}) {
		t.Fatalf("type name is part of the hash")
	}
	if !Equal(nil, nil) {
		t.Fatalf("nil equals nil")
	}
	if Equal(nil, getInvoices{}) {
		t.Fatalf("nil must not equal a value")
	}
	if !Equal(getOrders{}, getOrders{}) {
		t.Fatalf("zero values must be equal")
	}
	if !Equal(getOrders{Statuses: nil}, getOrders{Statuses: nil}) {
		t.Fatalf("nil fields must be equal")
	}
	if Equal(getOrders{Statuses: nil}, getOrders{Statuses: []string{}}) {
		t.Fatalf("nil and empty slices differ")
	}
}

func TestEqual_SameReference(t *testing.T) {
	a := &node{Name: "a"}
	a.Next = a
	if !Equal(a, a) {
		t.Fatalf("same reference must be equal")
	}
	b := &node{Name: "a"}
	b.Next = b
	if !Equal(a, b) {
		t.Fatalf("structurally equal cycles must be equal")
	}
}

func TestEqual_CyclesClosingAtDifferentDepths(t *testing.T) {
	a := &node{Name: "n"}
	a.Next = a
	b := &node{Name: "n"}
	c := &node{Name: "n"}
	b.Next = c
	c.Next = c
	if Equal(a, b) {
		t.Fatalf("cycles of different length must not be equal: %q vs %q", Flatten(a), Flatten(b))
	}
}

func TestEqual_SharedTailInsideCycle(t *testing.T) {
	n1 := &node{Name: "x"}
	n2 := &node{Name: "x"}
	p := &node{Name: "p", Next: n1}
	n1.Next, n2.Next = p, p
	if Equal(n1, n2) {
		t.Fatalf("want not equal: %q vs %q", Flatten(n1), Flatten(n2))
	}
}

func TestEqual_ImpliesSameHash(t *testing.T) {
	self := func() *node {
		n := &node{Name: "n"}
		n.Next = n
		return n
	}
	pair := func() *node {
		x, y := &node{Name: "x"}, &node{Name: "y"}
		x.Next, y.Next = y, x
		return x
	}
	shared := &node{Name: "s"}
	cases := []struct {
		name string
		a, b any
	}{
		{"self loops", self(), self()},
		{"two-node loops", pair(), pair()},
		{"shared tail", &node{Name: "h", Next: shared}, &node{Name: "h", Next: shared}},
		{"slices", []int{1, 2}, []int{1, 2}},
	}
	for _, tc := range cases {
		if !Equal(tc.a, tc.b) {
			t.Fatalf("%s: want equal", tc.name)
		}
		if Hash(tc.a) != Hash(tc.b) {
			t.Fatalf("%s: equal values hash differently: %q vs %q", tc.name, Flatten(tc.a), Flatten(tc.b))
		}
	}
}

func TestEqual_SameMapWithNaNKey(t *testing.T) {
	m := map[float64]string{math.NaN(): "x", 1: "y"}
	if !Equal(m, m) {
		t.Fatalf("same map must be equal to itself")
	}
	s := []float64{math.NaN()}
	if !Equal(s, s) {
		t.Fatalf("same slice must be equal to itself")
	}
}

func TestEqual_TimeByText(t *testing.T) {
	utc := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !Equal(utc, utc) {
		t.Fatalf("want equal")
	}
	if Equal(utc, utc.Add(time.Nanosecond)) {
		t.Fatalf("want different")
	}
}

func TestOperationName(t *testing.T) {
	if got := OperationName(getInvoices{}); got != "querycache.getInvoices" {
		t.Fatalf("got %q", got)
	}
	if got := OperationName(&getInvoices{}); got != "querycache.getInvoices" {
		t.Fatalf("pointer: got %q", got)
	}
	if got := OperationName(nil); got != "<nil>" {
		t.Fatalf("nil: got %q", got)
	}
}

func TestEntry_EqualAndHash(t *testing.T) {
	a, b := NewEntry([]int{1, 2}), NewEntry([]int{1, 2})
	if !a.Equal(b) || a.Hash() != b.Hash() {
		t.Fatalf("entries wrapping equal values must match")
	}
	if a.Equal(NewEntry([]int{2, 1})) {
		t.Fatalf("order matters")
	}
	var nilEntry Entry[*getInvoices]
	if !nilEntry.Equal(NewEntry[*getInvoices](nil)) {
		t.Fatalf("entries wrapping nil must be equal")
	}
}
