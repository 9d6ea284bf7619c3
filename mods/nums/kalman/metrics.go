package kalman

import (
	gometrics "github.com/rcrowley/go-metrics"
)

var (
	filterTimer    = gometrics.NewRegisteredTimer("kalman.filter", gometrics.DefaultRegistry)
	smoothTimer    = gometrics.NewRegisteredTimer("kalman.smooth", gometrics.DefaultRegistry)
	sampleTimer    = gometrics.NewRegisteredTimer("kalman.sample", gometrics.DefaultRegistry)
	faultCounter   = gometrics.NewRegisteredCounter("kalman.faults", gometrics.DefaultRegistry)
	missingCounter = gometrics.NewRegisteredCounter("kalman.missing", gometrics.DefaultRegistry)
)
