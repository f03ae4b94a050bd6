package config

// Specification of image resizing mode.
// ENUM(none, keepAR, stretch)
type ImageResizeMode int
