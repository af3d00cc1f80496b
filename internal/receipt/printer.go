package receipt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// ErrPrinterUnavailable はプリンターに接続または書き込みできない場合のエラー。
var ErrPrinterUnavailable = errors.New("printer not available")

// Printer はESC/POSのバイト列をプリンターに送信する。
type Printer interface {
	Print(ctx context.Context, data []byte) error
}

// DevicePrinter はUSB接続などのローカルデバイスファイルに書き込むプリンター。
type DevicePrinter struct {
	Path string
}

// Print はデバイスファイルを書き込み専用で開いてデータを書き込む。
// デバイスが存在しない場合や書き込みに失敗した場合はErrPrinterUnavailableをラップして返す。
func (p *DevicePrinter) Print(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.OpenFile(p.Path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPrinterUnavailable, p.Path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%w: %s: %v", ErrPrinterUnavailable, p.Path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPrinterUnavailable, p.Path, err)
	}
	return nil
}

// NetworkPrinter はTCP（RAW 9100ポートなど）で接続するネットワークプリンター。
type NetworkPrinter struct {
	Addr    string
	Timeout time.Duration
}

// Print はプリンターに接続してデータを送信する。
// 接続と書き込みはTimeoutで打ち切る。
func (p *NetworkPrinter) Print(ctx context.Context, data []byte) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", ErrPrinterUnavailable, p.Addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPrinterUnavailable, p.Addr, err)
	}

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPrinterUnavailable, p.Addr, err)
	}
	return nil
}

// NewPrinter は設定からPrinterを選択する。addrが指定されている場合はネットワークプリンターを優先する。
func NewPrinter(devicePath, addr string, timeout time.Duration) Printer {
	if addr != "" {
		return &NetworkPrinter{Addr: addr, Timeout: timeout}
	}
	return &DevicePrinter{Path: devicePath}
}
