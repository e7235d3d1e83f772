//go:build cgo

// Command libllamabridge builds the bridge as a C shared library:
//
//	go build -buildmode=c-shared -o libllamabridge.so ./cmd/libllamabridge
//
// Hosts hold an opaque handle returned by llamabridge_new and pass it back to
// every call. Strings returned by the library must be released with
// llamabridge_free_string.
package main

/*
#include <stdlib.h>
#include <stdint.h>
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"llamabridge/internal/bridge"
)

func main() {}

func lookup(h C.uintptr_t) (*instance, bool) {
	if h == 0 {
		return nil, false
	}
	defer func() { _ = recover() }()
	inst, ok := cgo.Handle(h).Value().(*instance)
	return inst, ok
}

// optString copies a C string into Go memory. NULL maps to nil.
func optString(s *C.char) *string {
	if s == nil {
		return nil
	}
	v := C.GoString(s)
	return &v
}

//export llamabridge_new
func llamabridge_new(echo C.int) C.uintptr_t {
	inst, err := newInstance(echo != 0)
	if err != nil {
		return 0
	}
	return C.uintptr_t(cgo.NewHandle(inst))
}

//export llamabridge_free
func llamabridge_free(h C.uintptr_t) {
	inst, ok := lookup(h)
	if !ok {
		return
	}
	inst.close()
	cgo.Handle(h).Delete()
}

//export llamabridge_load_model
func llamabridge_load_model(h C.uintptr_t, path *C.char) C.int {
	inst, ok := lookup(h)
	if !ok {
		return 0
	}
	if inst.b.LoadModel(optString(path)) {
		return 1
	}
	return 0
}

//export llamabridge_unload_model
func llamabridge_unload_model(h C.uintptr_t) {
	if inst, ok := lookup(h); ok {
		inst.b.UnloadModel()
	}
}

//export llamabridge_is_ready
func llamabridge_is_ready(h C.uintptr_t) C.int {
	if inst, ok := lookup(h); ok && inst.b.IsReady() {
		return 1
	}
	return 0
}

// llamabridge_generate never returns NULL for a valid handle; an empty string
// signals failure and llamabridge_last_error explains it.
//
//export llamabridge_generate
func llamabridge_generate(h C.uintptr_t, prompt, system *C.char, maxTokens C.int, temperature C.float) *C.char {
	inst, ok := lookup(h)
	if !ok {
		return nil
	}
	out := inst.b.Generate(optString(prompt), optString(system), int(maxTokens), float32(temperature))
	return C.CString(out)
}

// llamabridge_last_error returns the numeric code of the last failure and, when
// msg is not NULL, stores a newly allocated message in *msg.
//
//export llamabridge_last_error
func llamabridge_last_error(h C.uintptr_t, msg **C.char) C.int {
	inst, ok := lookup(h)
	if !ok {
		if msg != nil {
			*msg = C.CString("invalid handle")
		}
		return C.int(bridge.CodeUnknownSession)
	}
	st := inst.b.LastError()
	if msg != nil {
		*msg = C.CString(st.Message)
	}
	return C.int(st.Code)
}

//export llamabridge_free_string
func llamabridge_free_string(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}
