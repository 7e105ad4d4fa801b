// Package qr renders share links as QR codes, either as PNG images or as
// half-block text for a terminal.
package qr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net"
	"strconv"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// quietZone is the light border, in modules, required around the symbol.
const quietZone = 2

// Encode returns the unscaled symbol for content, one pixel per module.
func Encode(content string) (barcode.Barcode, error) {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("encode QR: %w", err)
	}
	return code, nil
}

// PNG renders content as a size x size PNG image.
func PNG(content string, size int) ([]byte, error) {
	code, err := Encode(content)
	if err != nil {
		return nil, err
	}
	img, err := barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("scale QR image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode QR PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Terminal renders content with Unicode half blocks, two module rows per
// text line. Dark modules are drawn as ink; set invert for terminals with a
// dark background.
func Terminal(content string, invert bool) (string, error) {
	code, err := Encode(content)
	if err != nil {
		return "", err
	}
	return halfBlocks(code, invert), nil
}

func halfBlocks(img image.Image, invert bool) string {
	b := img.Bounds()
	dark := func(x, y int) bool {
		if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
			return invert
		}
		return isDark(img.At(x, y)) != invert
	}

	var sb strings.Builder
	for y := b.Min.Y - quietZone; y < b.Max.Y+quietZone; y += 2 {
		for x := b.Min.X - quietZone; x < b.Max.X+quietZone; x++ {
			top, bottom := dark(x, y), dark(x, y+1)
			switch {
			case top && bottom:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bottom:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func isDark(c color.Color) bool {
	return color.GrayModel.Convert(c).(color.Gray).Y < 128
}

// ShareURL builds the address a phone on the same network should open.
func ShareURL(host string, port int, https bool) string {
	scheme := "http"
	if https {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// LocalIP returns the first non-loopback IPv4 address of this machine, or
// 127.0.0.1 when none is configured.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}
