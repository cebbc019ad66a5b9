package device

import "github.com/pkg/errors"

//Sentinel errors for the failure taxonomy of the pipeline. Callers classify
//with errors.Is; every one of them is fatal for the current run.
var (
	//ErrDeviceInit means the requested device could not be selected.
	ErrDeviceInit = errors.New("device initialization failed")
	//ErrAllocationFailed means a specific buffer request could not be
	//satisfied. All previously acquired buffers must be released.
	ErrAllocationFailed = errors.New("device allocation failed")
	//ErrLaunchFailure means a kernel could not be dispatched at all.
	ErrLaunchFailure = errors.New("kernel launch failed")
	//ErrExecutionFailure means a dispatched kernel did not complete. No
	//partial results may be used.
	ErrExecutionFailure = errors.New("kernel execution failed")
)
