package protocol

import "testing"

func TestScratchOutput(t *testing.T) {
	s := NewScratchOutput()
	s.Output([]byte{1, 2, 3})
	mark := s.CurPosition()
	s.Output([]byte{4, 5})

	if got := s.DataSince(mark); len(got) != 2 || got[0] != 4 {
		t.Errorf("DataSince(%d) = %v, want [4 5]", mark, got)
	}

	s.Update(0, 9)
	if s.Result()[0] != 9 {
		t.Errorf("Update did not change byte 0: %v", s.Result())
	}

	s.Update(10, 7)
	if len(s.Result()) != 5 {
		t.Errorf("Update past the write position changed length: %v", s.Result())
	}

	s.Reset()
	if s.CurPosition() != 0 || len(s.Result()) != 0 {
		t.Errorf("Reset left %d bytes", s.CurPosition())
	}
}

func TestScratchOutputTruncates(t *testing.T) {
	s := NewScratchOutput()
	s.Output(make([]byte, ScratchSize+10))
	if s.CurPosition() != ScratchSize {
		t.Errorf("expected truncation at %d, got %d", ScratchSize, s.CurPosition())
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	f := NewFifoBuffer(5)

	if n := f.Write([]byte{1, 2, 3, 4, 5, 6}); n != 4 {
		t.Errorf("size-5 FIFO stored %d bytes, want 4", n)
	}
	f.Pop(2)
	if n := f.Write([]byte{5, 6}); n != 2 {
		t.Errorf("expected to write 2 bytes after pop, wrote %d", n)
	}

	data := f.Data()
	want := []byte{3, 4, 5, 6}
	if string(data) != string(want) {
		t.Errorf("wrapped Data() = %v, want %v", data, want)
	}

	f.Pop(100)
	if f.Available() != 0 {
		t.Errorf("Pop past the end left %d bytes", f.Available())
	}
}
