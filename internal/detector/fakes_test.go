package detector

import (
	"context"
	"errors"
	"strings"
)

type fakeLister struct {
	names []string
	err   error
}

func (f fakeLister) ProcessNames(context.Context) ([]string, error) {
	return f.names, f.err
}

type fakePorts struct {
	live map[int]bool
	errs map[int]error
}

func (f fakePorts) IsListening(_ context.Context, port int) (bool, error) {
	if err := f.errs[port]; err != nil {
		return false, err
	}
	return f.live[port], nil
}

type fakeOwners map[int]string

func (f fakeOwners) OwnerOf(_ context.Context, port int) (string, error) {
	if name, ok := f[port]; ok {
		return name, nil
	}
	return "", errors.New("not found")
}

type fakeRegistry struct {
	available bool
	reason    string
	keys      map[string]bool
	err       error
}

func (f fakeRegistry) Available() (bool, string) {
	return f.available, f.reason
}

func (f fakeRegistry) KeyExists(path string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.keys[strings.ToUpper(path)], nil
}
