package logx

import "github.com/aristanetworks/glog"

// Glog adapts the package-level glog functions to Logger.
type Glog struct{}

func (Glog) Infof(format string, args ...any)    { glog.Infof(format, args...) }
func (Glog) Warningf(format string, args ...any) { glog.Warningf(format, args...) }
func (Glog) Errorf(format string, args ...any)   { glog.Errorf(format, args...) }
