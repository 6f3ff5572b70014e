//go:build !gui

package main

const guiBuild = false
