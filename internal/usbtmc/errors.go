package usbtmc

import "github.com/khainav/linux-usbtmc/internal/errs"

func errBadArg(format string, args ...interface{}) error {
	return errs.New(errs.BADARG, format, args...)
}

func errBadReq(format string, args ...interface{}) error {
	return errs.New(errs.BADREQ, format, args...)
}

func errNotSup(format string, args ...interface{}) error {
	return errs.New(errs.NOTSUP, format, args...)
}

func errPerm(format string, args ...interface{}) error {
	return errs.New(errs.PERM, format, args...)
}
