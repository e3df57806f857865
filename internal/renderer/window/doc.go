// Package window shows a renderer in a desktop window with ebiten.
package window
