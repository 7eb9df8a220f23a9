//go:build windows

package capture

import (
	"fmt"
	"runtime"
	"syscall"
	"unsafe"
)

const dlFlagsDefault = 0

var (
	kernel32           = syscall.NewLazyDLL("kernel32.dll")
	procLoadLibraryW   = kernel32.NewProc("LoadLibraryW")
	procGetProcAddress = kernel32.NewProc("GetProcAddress")
	procFreeLibrary    = kernel32.NewProc("FreeLibrary")
)

func dlopenLibrary(path string, _ int) (uintptr, error) {
	p, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	handle, _, callErr := procLoadLibraryW.Call(uintptr(unsafe.Pointer(p)))
	runtime.KeepAlive(p)
	if handle == 0 {
		return 0, fmt.Errorf("LoadLibrary %s failed: %v", path, callErr)
	}
	return handle, nil
}

func dlsymLibrary(handle uintptr, name string) (uintptr, error) {
	b := append([]byte(name), 0)
	addr, _, callErr := procGetProcAddress.Call(handle, uintptr(unsafe.Pointer(&b[0])))
	runtime.KeepAlive(b)
	if addr == 0 {
		return 0, fmt.Errorf("GetProcAddress %s failed: %v", name, callErr)
	}
	return addr, nil
}

func dlcloseLibrary(handle uintptr) error {
	ret, _, callErr := procFreeLibrary.Call(handle)
	if ret == 0 {
		return fmt.Errorf("FreeLibrary failed: %v", callErr)
	}
	return nil
}
