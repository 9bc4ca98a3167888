package patch

import "errors"

var (
	ErrPatchExists       = errors.New("address already patched")
	ErrHookError         = errors.New("hook internal error")
	ErrInvalidKernelAddr = errors.New("kernel address in shared region")
	ErrInvalidHandle     = errors.New("invalid patch handle")
	ErrInvalidArgs       = errors.New("invalid arguments")
	ErrSystem            = errors.New("system not configured")
)
