package main

// General API documentation for swaggo. Build with -tags=swagger to serve it.
//
// @title           llamabridge API
// @version         1.0
// @description     Bring-up HTTP API for on-device model sessions.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
