package actions

// A list of status codes used inside the application. For more details see: https://httpstatuses.com/

// OK - success
const OK = 200

// Created - resource created
const Created = 201

// BadRequest - sent when a bad request was submitted by the client
const BadRequest = 400

// Unauthorized - when the user did not login before attempting to access the resource
const Unauthorized = 401

// AccessDenied - when the use does not have access to the resource with the given login token
const AccessDenied = 403

// NotFound - the resource identified by the given ID does not exist
const NotFound = 404

// Conflict - the resource already exists
const Conflict = 409

// ValidationFailed - the request did not pass field verification
const ValidationFailed = 422

// TooManyRequests - the caller exceeded its request rate
const TooManyRequests = 429

// ServerError - internal server error
const ServerError = 500
