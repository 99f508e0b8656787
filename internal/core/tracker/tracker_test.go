package tracker

import "testing"

func TestMemory_SetContentsMarksChanged(t *testing.T) {
	m := NewMemory()
	m.SetContents("/ws/app/src/A.groovy", "class A {}")

	if text, ok := m.Contents("/ws/app/src/A.groovy"); !ok || text != "class A {}" {
		t.Fatalf("unexpected contents: %q %v", text, ok)
	}
	if !m.ChangedIDs()["/ws/app/src/A.groovy"] {
		t.Fatal("expected id to be marked changed")
	}
}

func TestMemory_ForceChangedWithoutContents(t *testing.T) {
	m := NewMemory()
	m.ForceChanged("/ws/app/src/B.groovy")

	if _, ok := m.Contents("/ws/app/src/B.groovy"); ok {
		t.Fatal("expected no tracked contents")
	}
	if !m.ChangedIDs()["/ws/app/src/B.groovy"] {
		t.Fatal("expected forced change to be recorded")
	}
}

func TestMemory_ClearChangedIsSelective(t *testing.T) {
	m := NewMemory()
	m.ForceChanged("a")
	m.ForceChanged("b")

	m.ClearChanged([]string{"a"})
	changed := m.ChangedIDs()
	if changed["a"] {
		t.Error("expected a to be cleared")
	}
	if !changed["b"] {
		t.Error("expected b to survive")
	}

	m.ClearAllChanged()
	if len(m.ChangedIDs()) != 0 {
		t.Error("expected all changes cleared")
	}
}

func TestMemory_ChangedIDsReturnsCopy(t *testing.T) {
	m := NewMemory()
	m.ForceChanged("a")

	snapshot := m.ChangedIDs()
	m.ForceChanged("b")
	if snapshot["b"] {
		t.Fatal("snapshot mutated by later change")
	}
}
