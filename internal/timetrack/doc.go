// Package timetrack records the time users spend on tasks.
package timetrack
