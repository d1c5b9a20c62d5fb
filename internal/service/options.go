package service

import (
	"math/rand/v2"
	"time"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// Picker returns an index in [0, n). The default is uniform.
type Picker func(n int) int

func systemClock() time.Time { return time.Now().UTC() }

func uniformPicker(n int) int { return rand.IntN(n) }
