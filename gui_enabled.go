//go:build gui

package main

// guiBuild makes the detached daemon show the floating indicator window.
const guiBuild = true
