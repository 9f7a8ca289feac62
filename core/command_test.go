package core

import (
	"errors"
	"testing"
)

func TestRegistryAssignsSequentialIDs(t *testing.T) {
	r := NewCommandRegistry()
	a := r.RegisterResponse("status", "value=%u")
	b := r.Register("ping", "", func(*[]byte) error { return nil })
	if a != 0 || b != 1 {
		t.Errorf("ids %d %d, want 0 1", a, b)
	}
	if again := r.Register("ping", "other", nil); again != b {
		t.Errorf("re-registering returned %d", again)
	}
	if r.Count() != 2 {
		t.Errorf("count %d", r.Count())
	}

	cmd, ok := r.GetCommandByName("status")
	if !ok || !cmd.IsResponse() || cmd.Format != "value=%u" {
		t.Errorf("status entry %+v", cmd)
	}
	if _, ok := r.GetCommandByName("missing"); ok {
		t.Error("found unregistered name")
	}
}

func TestRegistryOrdered(t *testing.T) {
	r := NewCommandRegistry()
	for _, name := range []string{"c", "a", "b"} {
		r.Register(name, "", nil)
	}
	var names []string
	for _, cmd := range r.Ordered() {
		names = append(names, cmd.Name)
	}
	if len(names) != 3 || names[0] != "c" || names[1] != "a" || names[2] != "b" {
		t.Errorf("order %v", names)
	}
}

func TestRegistryDispatch(t *testing.T) {
	r := NewCommandRegistry()
	errBoom := errors.New("boom")
	var got []byte
	id := r.Register("echo", "", func(data *[]byte) error {
		got = append(got, (*data)[0])
		*data = (*data)[1:]
		return nil
	})
	failing := r.Register("fail", "", func(*[]byte) error { return errBoom })
	resp := r.RegisterResponse("out", "")

	data := []byte{42, 7}
	if err := r.Dispatch(id, &data); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 42 || len(data) != 1 {
		t.Errorf("handler saw %v, left %v", got, data)
	}
	if err := r.Dispatch(failing, &data); err != errBoom {
		t.Errorf("err = %v", err)
	}
	if err := r.Dispatch(resp, &data); err != ErrUnknownCommand {
		t.Errorf("dispatching a response: %v", err)
	}
	if err := r.Dispatch(99, &data); err != ErrUnknownCommand {
		t.Errorf("dispatching unknown id: %v", err)
	}
}
