package curtask

import "testing"

type fakeTask struct {
	ID int
}

func TestSetCurrentRoundTrip(t *testing.T) {
	tk := &fakeTask{ID: 7}
	SetCurrent(tk)
	defer ClearCurrent()

	if !HasCurrent() {
		t.Fatal("HasCurrent false after SetCurrent")
	}
	got := Current[fakeTask]()
	if got.ID != 7 {
		t.Fatalf("Current().ID = %d, want 7", got.ID)
	}
}

func TestSetCurrentTwicePanics(t *testing.T) {
	SetCurrent(&fakeTask{ID: 1})
	defer ClearCurrent()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double SetCurrent")
		}
	}()
	SetCurrent(&fakeTask{ID: 2})
}

func TestCurrentWithoutSetPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic reading Current with no task installed")
		}
	}()
	Current[fakeTask]()
}

func TestClearCurrentTwicePanics(t *testing.T) {
	SetCurrent(&fakeTask{ID: 3})
	ClearCurrent()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double ClearCurrent")
		}
	}()
	ClearCurrent()
}
