package orders

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"recordloader/internal/domain"
)

type collected struct {
	blocks []domain.OrderBlock
	errs   []error
}

func collect(t *testing.T, input string) collected {
	t.Helper()
	var c collected
	for blk, err := range Blocks(strings.NewReader(input)) {
		c.blocks = append(c.blocks, blk)
		c.errs = append(c.errs, err)
	}
	return c
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestBlocks_RoundTripShape(t *testing.T) {
	t.Parallel()

	c := collect(t, "order,2024-01-05\n2,Widget\n3,Gadget")
	if len(c.blocks) != 1 || c.errs[0] != nil {
		t.Fatalf("got %d blocks, errs %v", len(c.blocks), c.errs)
	}
	b := c.blocks[0]
	if !b.Order.Date.Equal(day(2024, 1, 5)) {
		t.Fatalf("date = %v", b.Order.Date)
	}
	want := []domain.OrderDetail{{Quantity: 2, Description: "Widget"}, {Quantity: 3, Description: "Gadget"}}
	if !reflect.DeepEqual(b.Details, want) {
		t.Fatalf("details = %#v", b.Details)
	}
	if b.Line != 1 || b.Raw != "order,2024-01-05\n2,Widget\n3,Gadget" {
		t.Fatalf("line/raw = %d %q", b.Line, b.Raw)
	}
}

func TestBlocks_ThreeFieldDetails(t *testing.T) {
	t.Parallel()

	c := collect(t, "order,2024-03-01 10:15:00\nitem,4, Blue Mug \nitem,1,Spoon,extra\n")
	if len(c.blocks) != 1 || c.errs[0] != nil {
		t.Fatalf("got %d blocks, errs %v", len(c.blocks), c.errs)
	}
	b := c.blocks[0]
	if want := time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC); !b.Order.Date.Equal(want) {
		t.Fatalf("date = %v; want %v", b.Order.Date, want)
	}
	want := []domain.OrderDetail{{Quantity: 4, Description: "Blue Mug"}, {Quantity: 1, Description: "Spoon"}}
	if !reflect.DeepEqual(b.Details, want) {
		t.Fatalf("details = %#v", b.Details)
	}
}

func TestBlocks_MultipleBlocksAndLineNumbers(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"exported by shop", // preamble, ignored
		"order,2024-01-05",
		"2,Widget",
		"",
		"order,2024-01-06",
		"1,Gizmo",
		"order,2024-01-07",
	}, "\n") + "\n"

	c := collect(t, input)
	if len(c.blocks) != 3 {
		t.Fatalf("blocks = %d; want 3", len(c.blocks))
	}
	lines := []int{c.blocks[0].Line, c.blocks[1].Line, c.blocks[2].Line}
	if !reflect.DeepEqual(lines, []int{2, 5, 7}) {
		t.Fatalf("lines = %v", lines)
	}
	if len(c.blocks[0].Details) != 1 || len(c.blocks[1].Details) != 1 || len(c.blocks[2].Details) != 0 {
		t.Fatalf("detail counts wrong: %+v", c.blocks)
	}
}

func TestBlocks_InvalidDateIsSkippable(t *testing.T) {
	t.Parallel()

	c := collect(t, "order,not-a-date\n1,Thing\norder,2024-02-30\n1,X\norder,\norder,2024-01-05\n5,Ok")
	if len(c.blocks) != 4 {
		t.Fatalf("blocks = %d; want 4", len(c.blocks))
	}
	for i := 0; i < 3; i++ {
		if !errors.Is(c.errs[i], ErrInvalidDate) {
			t.Fatalf("block %d err = %v; want ErrInvalidDate", i, c.errs[i])
		}
		if c.blocks[i].Details != nil {
			t.Fatalf("block %d details should not be parsed", i)
		}
	}
	if c.blocks[0].DateField != "not-a-date" {
		t.Fatalf("DateField = %q", c.blocks[0].DateField)
	}
	if c.errs[3] != nil || c.blocks[3].Details[0].Quantity != 5 {
		t.Fatalf("last block = %+v, %v", c.blocks[3], c.errs[3])
	}
}

func TestBlocks_BadQuantityIsFatal(t *testing.T) {
	t.Parallel()

	c := collect(t, "order,2024-01-05\nx,Widget\norder,2024-01-06\n1,Never")
	if len(c.blocks) != 1 {
		t.Fatalf("iteration should stop after fatal error, got %d blocks", len(c.blocks))
	}
	if c.errs[0] == nil || errors.Is(c.errs[0], ErrInvalidDate) {
		t.Fatalf("want fatal error, got %v", c.errs[0])
	}
	if !strings.Contains(c.errs[0].Error(), "line 2") {
		t.Fatalf("error should name the line: %v", c.errs[0])
	}
}

func TestBlocks_ShortDetailIsFatal(t *testing.T) {
	t.Parallel()

	c := collect(t, "order,2024-01-05\nWidget")
	if len(c.errs) != 1 || c.errs[0] == nil {
		t.Fatalf("want one fatal error, got %v", c.errs)
	}
}

func TestBlocks_CRLFAndBOM(t *testing.T) {
	t.Parallel()

	c := collect(t, "\uFEFForder,2024-01-05\r\n2,Widget\r\norder,2024-01-06\r\n3,Gadget\r\n")
	if len(c.blocks) != 2 || c.errs[0] != nil || c.errs[1] != nil {
		t.Fatalf("blocks = %d, errs = %v", len(c.blocks), c.errs)
	}
	if c.blocks[1].Details[0].Description != "Gadget" {
		t.Fatalf("description = %q", c.blocks[1].Details[0].Description)
	}
}

func TestBlocks_HeaderIsCaseSensitive(t *testing.T) {
	t.Parallel()

	c := collect(t, "Order,2024-01-01\n1,Ignored\norder,2024-01-05\n2,Widget")
	if len(c.blocks) != 1 || c.blocks[0].Line != 3 {
		t.Fatalf("blocks = %+v", c.blocks)
	}
}

// TestBlocks_SmallReads feeds the scanner one byte at a time so a block
// boundary is never in the first buffer.
func TestBlocks_SmallReads(t *testing.T) {
	t.Parallel()

	input := "order,2024-01-05\n2,Widget\n3,Gadget\norder,2024-01-06\n1,Gizmo\n"
	var n, details int
	for blk, err := range Blocks(iotest.OneByteReader(strings.NewReader(input))) {
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		n++
		details += len(blk.Details)
	}
	if n != 2 || details != 3 {
		t.Fatalf("blocks=%d details=%d; want 2 and 3", n, details)
	}
}

func TestBlocks_EarlyBreak(t *testing.T) {
	t.Parallel()

	n := 0
	for range Blocks(strings.NewReader("order,2024-01-05\norder,2024-01-06\norder,2024-01-07\n")) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("n = %d", n)
	}
}

func TestBlocks_ReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk gone")
	var last error
	for _, err := range Blocks(iotest.ErrReader(boom)) {
		last = err
	}
	if !errors.Is(last, boom) {
		t.Fatalf("err = %v; want %v", last, boom)
	}
}

func TestSplitBlocks_Table(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		data    string
		atEOF   bool
		advance int
		token   string
	}{
		{"need more without newline", "order,2024", false, 0, ""},
		{"need more without next header", "order,2024-01-05\n2,W\n", false, 0, ""},
		{"cut before next header", "order,a\n1,x\norder,b\n", false, 12, "order,a\n1,x\n"},
		{"eof flushes remainder", "order,a\n1,x", true, 11, "order,a\n1,x"},
		{"header mid-line is not a boundary", "order,a\n1,order,x\n", true, 18, "order,a\n1,order,x\n"},
	}
	for _, tc := range cases {
		adv, tok, err := splitBlocks([]byte(tc.data), tc.atEOF)
		if err != nil || adv != tc.advance || string(tok) != tc.token {
			t.Fatalf("%s: got (%d, %q, %v); want (%d, %q)", tc.name, adv, tok, err, tc.advance, tc.token)
		}
	}
}
