package config

import (
	"fmt"
	"strconv"
)

type loader struct {
	lookup lookupFunc
	errs   []error
}

func (l *loader) get(key string) (string, bool) {
	return l.lookup(EnvPrefix + key)
}

func (l *loader) fail(key string, err error) {
	l.errs = append(l.errs, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err))
}

func (l *loader) stringVar(key string, dst *string) {
	if v, found := l.get(key); found {
		*dst = v
	}
}

func (l *loader) listVar(key string, dst *[]string) {
	if v, found := l.get(key); found {
		*dst = splitList(v)
	}
}

func (l *loader) repetitionsVar(key string, dst map[string]int) {
	v, found := l.get(key)
	if !found {
		return
	}

	reps, err := ParseRepetitions(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		return
	}

	for name, n := range reps {
		dst[name] = n
	}
}

func (l *loader) intVar(key string, dst *int) {
	v, found := l.get(key)
	if !found {
		return
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail(EnvPrefix+key, err)
		return
	}

	*dst = n
}

func (l *loader) int64Var(key string, dst *int64) {
	v, found := l.get(key)
	if !found {
		return
	}

	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		l.fail(EnvPrefix+key, err)
		return
	}

	*dst = n
}

func (l *loader) uint64Var(key string, dst *uint64) {
	v, found := l.get(key)
	if !found {
		return
	}

	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		l.fail(EnvPrefix+key, err)
		return
	}

	*dst = n
}

func (l *loader) floatVar(key string, dst *float64) {
	v, found := l.get(key)
	if !found {
		return
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.fail(EnvPrefix+key, err)
		return
	}

	*dst = f
}

func (l *loader) boolVar(key string, dst *bool) {
	v, found := l.get(key)
	if !found {
		return
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		l.fail(EnvPrefix+key, err)
		return
	}

	*dst = b
}
