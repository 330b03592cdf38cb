package priolist

import "testing"

func mustPop(t *testing.T, l *List) Id {
	t.Helper()
	id, ok := l.Pop()
	if !ok {
		t.Fatalf("expected Pop to return an item, got none")
	}
	return id
}

func TestInsertDoesNotActivate(t *testing.T) {
	l := New()
	l.Insert(0, DefaultPriority)

	if _, ok := l.Pop(); ok {
		t.Fatalf("expected no current item before activation")
	}
}

func TestInsertAndRemove(t *testing.T) {
	l := New()
	l.Insert(0, DefaultPriority)
	if l.Len() != 1 {
		t.Fatalf("expected 1 item, got %d", l.Len())
	}
	l.Remove(0)
	if l.Len() != 0 {
		t.Fatalf("expected 0 items after remove, got %d", l.Len())
	}
}

func TestActivateMakesPopAvailable(t *testing.T) {
	l := New()
	l.Insert(0, DefaultPriority)
	l.Activate(0)

	if id := mustPop(t, l); id != 0 {
		t.Fatalf("expected id 0, got %d", id)
	}
}

func TestActivateDoesNotStealCurrent(t *testing.T) {
	l := New()
	l.Insert(1, DefaultPriority)
	l.Insert(2, DefaultPriority)
	l.Activate(1)
	l.Activate(2)

	if id := mustPop(t, l); id != 1 {
		t.Fatalf("expected id 1 first, got %d", id)
	}
}

func TestPopRoundRobinsForward(t *testing.T) {
	l := New()
	l.Insert(1, DefaultPriority)
	l.Insert(2, DefaultPriority)
	l.Activate(1)
	l.Activate(2)

	if id := mustPop(t, l); id != 1 {
		t.Fatalf("want 1, got %d", id)
	}
	if id := mustPop(t, l); id != 2 {
		t.Fatalf("want 2, got %d", id)
	}
}

func TestPopWraps(t *testing.T) {
	l := New()
	for _, id := range []Id{1, 2, 3, 4} {
		l.Insert(id, DefaultPriority)
	}
	l.Activate(3)
	l.Activate(4)
	l.Activate(1)
	l.Activate(2)

	want := []Id{3, 4, 1, 2}
	for _, w := range want {
		if id := mustPop(t, l); id != w {
			t.Fatalf("want %d, got %d", w, id)
		}
	}
}

func TestPopDeactivates(t *testing.T) {
	l := New()
	l.Insert(0, DefaultPriority)
	l.Activate(0)

	mustPop(t, l)
	if _, ok := l.Pop(); ok {
		t.Fatalf("expected no current item after popping the only active entry")
	}
}

func TestPopSkipsLowerPriorities(t *testing.T) {
	l := New()
	l.Insert(1, 1)
	l.Insert(2, 8)
	l.Insert(3, 1)
	l.Insert(4, 8)

	l.Activate(3)
	l.Activate(4)
	l.Activate(1)
	l.Activate(2)

	if id := mustPop(t, l); id != 3 {
		t.Fatalf("want 3, got %d", id)
	}
	if id := mustPop(t, l); id != 1 {
		t.Fatalf("want 1, got %d", id)
	}
}

func TestRemoveCurrentCanMakePopUnavailable(t *testing.T) {
	l := New()
	l.Insert(1, 1)
	l.Insert(2, 8)
	l.Insert(3, 1)
	l.Insert(4, 8)

	l.Activate(3)
	l.Remove(3)

	if _, ok := l.Pop(); ok {
		t.Fatalf("expected no current item")
	}
}

func TestRemoveCurrentAdvances(t *testing.T) {
	l := New()
	for _, id := range []Id{1, 2, 3, 4} {
		l.Insert(id, DefaultPriority)
	}
	l.Activate(3)
	l.Activate(4)
	l.Remove(3)

	if id := mustPop(t, l); id != 4 {
		t.Fatalf("want 4, got %d", id)
	}
}

func TestRemoveCurrentWraps(t *testing.T) {
	l := New()
	for _, id := range []Id{1, 2, 3, 4} {
		l.Insert(id, DefaultPriority)
	}
	l.Activate(3)
	l.Activate(2)
	l.Remove(3)

	if id := mustPop(t, l); id != 2 {
		t.Fatalf("want 2, got %d", id)
	}
}

func TestRemoveSkipsLowerPriorities(t *testing.T) {
	l := New()
	l.Insert(1, 1)
	l.Insert(2, 8)
	l.Insert(3, 1)
	l.Insert(4, 8)

	l.Activate(3)
	l.Activate(1)
	l.Activate(2)
	l.Activate(4)
	l.Remove(3)

	if id := mustPop(t, l); id != 1 {
		t.Fatalf("want 1, got %d", id)
	}
}

func TestActivateHigherPriorityStealsCurrent(t *testing.T) {
	l := New()
	l.Insert(1, 8)
	l.Insert(2, 4)
	l.Insert(3, 1)
	l.Insert(4, 8)

	l.Activate(1)
	l.Activate(4)
	if id := mustPop(t, l); id != 1 {
		t.Fatalf("want 1, got %d", id)
	}

	l.Activate(1)
	l.Activate(4)
	l.Activate(2)
	if id := mustPop(t, l); id != 2 {
		t.Fatalf("want 2, got %d", id)
	}

	l.Activate(2)
	l.Activate(3)
	if id := mustPop(t, l); id != 3 {
		t.Fatalf("want 3, got %d", id)
	}
}

func TestDeactivateOfCurrentAdvances(t *testing.T) {
	l := New()
	l.Insert(1, DefaultPriority)
	l.Insert(2, DefaultPriority)
	l.Activate(1)
	l.Activate(2)

	l.Deactivate(1)
	if id := mustPop(t, l); id != 2 {
		t.Fatalf("want 2, got %d", id)
	}
}

func TestClampsPriorityOnInsert(t *testing.T) {
	l := New()
	l.Insert(1, 0)
	l.Insert(2, 99)
	l.Activate(1)
	l.Activate(2)

	if id := mustPop(t, l); id != 1 {
		t.Fatalf("want 1 (clamped to highest precedence), got %d", id)
	}
}
