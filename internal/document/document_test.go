package document

import "testing"

type recordingCallbacks struct {
	added   []int
	changed []int
	deleted []int
}

func (r *recordingCallbacks) AddLine(pos int, text string, cursorCols []int) {
	r.added = append(r.added, pos)
}

func (r *recordingCallbacks) ChangeLine(pos int, text string, cursorCols []int) {
	r.changed = append(r.changed, pos)
}

func (r *recordingCallbacks) DeleteLine(pos int) {
	r.deleted = append(r.deleted, pos)
}

func TestNewFromTextRoundTrip(t *testing.T) {
	text := "hello\nworld\n"
	doc := NewFromText(text, nil)
	if got := doc.Text(); got != text {
		t.Fatalf("Text() = %q, want %q", got, text)
	}
}

func TestNewFromTextKeepsTrailingEmptyLine(t *testing.T) {
	doc := NewFromText("ab\ncd\n", nil)
	lines := doc.Lines()
	want := []string{"ab\n", "cd\n", ""}
	if len(lines) != len(want) {
		t.Fatalf("Lines() = %#v, want %#v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("Lines() = %#v, want %#v", lines, want)
		}
	}
}

func TestNewFromTextEmpty(t *testing.T) {
	doc := NewFromText("", nil)
	if got := doc.Text(); got != "" {
		t.Fatalf("Text() = %q, want empty", got)
	}
	if len(doc.Lines()) != 1 {
		t.Fatalf("expected exactly one empty line, got %v", doc.Lines())
	}
}

func TestCreateAndRemoveCursor(t *testing.T) {
	doc := NewFromText("abc\n", nil)
	if err := doc.Create("u1", 0, 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := doc.Create("u1", 0, 0); err == nil {
		t.Fatalf("expected error creating duplicate cursor")
	}
	if err := doc.Remove("u1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := doc.Remove("u1"); err == nil {
		t.Fatalf("expected error removing already-removed cursor")
	}
}

func TestInsertCharAdvancesCursor(t *testing.T) {
	doc := NewFromText("ac\n", nil)
	if err := doc.Create("u1", 0, 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := doc.Insert("u1", "b"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := doc.Text(); got != "abc\n" {
		t.Fatalf("Text() = %q, want %q", got, "abc\n")
	}
	cursors := doc.Cursors()
	if cursors["u1"].Col != 2 {
		t.Fatalf("cursor col = %d, want 2", cursors["u1"].Col)
	}
}

func TestInsertNewlineSplitsLine(t *testing.T) {
	doc := New([]string{"abcd"}, nil)
	if err := doc.Create("u1", 0, 2); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := doc.Insert("u1", "\n"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	lines := doc.Lines()
	if len(lines) != 2 || lines[0] != "ab\n" || lines[1] != "cd" {
		t.Fatalf("unexpected lines after split: %#v", lines)
	}
	cursors := doc.Cursors()
	if cursors["u1"].Line != 1 || cursors["u1"].Col != 0 {
		t.Fatalf("cursor not repositioned after split: %#v", cursors["u1"])
	}
}

// TestBackspaceJoinsLines matches spec scenario 5 exactly: document
// ["ab\n","cd"], cursor at (1,0), backspace -> ["abcd"] with cursor (0,2).
func TestBackspaceJoinsLines(t *testing.T) {
	doc := New([]string{"ab\n", "cd"}, nil)
	if err := doc.Create("u1", 1, 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := doc.Move("u1", "backspace"); err != nil {
		t.Fatalf("Move backspace: %v", err)
	}
	lines := doc.Lines()
	if len(lines) != 1 || lines[0] != "abcd" {
		t.Fatalf("unexpected lines after join: %#v", lines)
	}
	cursors := doc.Cursors()
	if cursors["u1"].Line != 0 || cursors["u1"].Col != 2 {
		t.Fatalf("cursor not repositioned after join: %#v", cursors["u1"])
	}
}

func TestDeleteJoinsFollowingLine(t *testing.T) {
	doc := NewFromText("ab\ncd\n", nil)
	if err := doc.Create("u1", 0, 2); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := doc.Move("u1", "delete"); err != nil {
		t.Fatalf("Move delete: %v", err)
	}
	if got := doc.Text(); got != "abcd\n" {
		t.Fatalf("Text() = %q, want %q", got, "abcd\n")
	}
}

func TestMoveRightAtNewlineIsNoop(t *testing.T) {
	doc := New([]string{"ab\n", "cd"}, nil)
	if err := doc.Create("u1", 0, 2); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := doc.Move("u1", "right"); err != nil {
		t.Fatalf("Move right: %v", err)
	}
	cursors := doc.Cursors()
	if cursors["u1"].Line != 0 || cursors["u1"].Col != 2 {
		t.Fatalf("expected no movement past the newline, got %#v", cursors["u1"])
	}
}

func TestMoveDownClampsToLastColumnOfShorterLine(t *testing.T) {
	doc := New([]string{"abcdef\n", "xy\n", "z"}, nil)
	if err := doc.Create("u1", 0, 6); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := doc.Move("u1", "down"); err != nil {
		t.Fatalf("Move down: %v", err)
	}
	cursors := doc.Cursors()
	if cursors["u1"].Line != 1 || cursors["u1"].Col != 2 {
		t.Fatalf("expected cursor clamped to (1,2), got %#v", cursors["u1"])
	}
}

func TestCreateRejectsColumnPastNewlineOnNonTerminalLine(t *testing.T) {
	doc := New([]string{"ab\n", "cd"}, nil)
	if err := doc.Create("u1", 0, 3); err == nil {
		t.Fatalf("expected error creating cursor past the newline on a non-terminal line")
	}
	if err := doc.Create("u1", 0, 2); err != nil {
		t.Fatalf("Create at the newline itself should succeed: %v", err)
	}
}

func TestMoveLeftAtOriginIsNoop(t *testing.T) {
	doc := NewFromText("ab\n", nil)
	if err := doc.Create("u1", 0, 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := doc.Move("u1", "left"); err != nil {
		t.Fatalf("Move left: %v", err)
	}
	cursors := doc.Cursors()
	if cursors["u1"].Line != 0 || cursors["u1"].Col != 0 {
		t.Fatalf("expected no movement at origin, got %#v", cursors["u1"])
	}
}

func TestMoveLeftDoesNotCrossLineBoundary(t *testing.T) {
	doc := New([]string{"ab\n", "cd"}, nil)
	if err := doc.Create("u1", 1, 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := doc.Move("u1", "left"); err != nil {
		t.Fatalf("Move left: %v", err)
	}
	cursors := doc.Cursors()
	if cursors["u1"].Line != 1 || cursors["u1"].Col != 0 {
		t.Fatalf("expected no movement across the line boundary, got %#v", cursors["u1"])
	}
}

func TestMoveUnknownCursorFails(t *testing.T) {
	doc := NewFromText("ab\n", nil)
	if err := doc.Move("missing", "left"); err == nil {
		t.Fatalf("expected error for unknown cursor")
	}
}

func TestMoveUnknownDirectionFails(t *testing.T) {
	doc := NewFromText("ab\n", nil)
	if err := doc.Create("u1", 0, 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := doc.Move("u1", "sideways"); err == nil {
		t.Fatalf("expected error for unknown direction")
	}
}

func TestCallbacksFireOnChange(t *testing.T) {
	rec := &recordingCallbacks{}
	doc := New([]string{"ab\n"}, rec)
	if err := doc.Create("u1", 0, 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := doc.Insert("u1", "x"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(rec.changed) != 1 || rec.changed[0] != 0 {
		t.Fatalf("expected one ChangeLine(0) call, got %#v", rec.changed)
	}

	if err := doc.Insert("u1", "\n"); err != nil {
		t.Fatalf("Insert newline: %v", err)
	}
	if len(rec.added) != 1 || rec.added[0] != 1 {
		t.Fatalf("expected one AddLine(1) call, got %#v", rec.added)
	}
}

func TestMultipleCursorsShiftOnInsert(t *testing.T) {
	doc := NewFromText("abcd\n", nil)
	if err := doc.Create("writer", 0, 1); err != nil {
		t.Fatalf("Create writer: %v", err)
	}
	if err := doc.Create("observer", 0, 3); err != nil {
		t.Fatalf("Create observer: %v", err)
	}
	if err := doc.Insert("writer", "X"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	cursors := doc.Cursors()
	if cursors["observer"].Col != 4 {
		t.Fatalf("expected observer to shift right to col 4, got %d", cursors["observer"].Col)
	}
}
