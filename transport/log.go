package transport

import "github.com/sirupsen/logrus"

// log is the package logger. Connections log through it unless their Config sets a Logger. Handshake progress is
// logged at debug level, failures at warn level.
var log logrus.FieldLogger = logrus.StandardLogger()

// UseLogger sets the logger used by connections whose Config does not set one.
func UseLogger(logger logrus.FieldLogger) {
	log = logger
}
