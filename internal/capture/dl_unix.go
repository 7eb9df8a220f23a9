//go:build !windows

package capture

import "github.com/ebitengine/purego"

const dlFlagsDefault = purego.RTLD_NOW | purego.RTLD_GLOBAL

func dlopenLibrary(path string, flags int) (uintptr, error) {
	return purego.Dlopen(path, flags)
}

func dlsymLibrary(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

func dlcloseLibrary(handle uintptr) error {
	return purego.Dlclose(handle)
}
