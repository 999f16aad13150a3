/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command rtpsctl is a thin smoke-test CLI: it wires a Config, a
// single in-process participant over transport/loopback, a publisher
// writing periodic samples on one topic, and an admin.Exporter
// dumping entity snapshots to stdout, so a developer can eyeball that
// discovery and the send loop are alive without standing up a second
// process. It is not a production entry point; a concrete UDP
// transport stays out of this core's scope (spec.md §1).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	libcbr "github.com/nabbar/golib/cobra"
	"github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
	libver "github.com/nabbar/golib/version"
	spfcbr "github.com/spf13/cobra"

	libadm "github.com/sabouaram/rtpsdds/admin"
	"github.com/sabouaram/rtpsdds/config"
	"github.com/sabouaram/rtpsdds/dds"
	"github.com/sabouaram/rtpsdds/rtps/qos"
	"github.com/sabouaram/rtpsdds/transport/loopback"
)

// buildDate, buildCommit and buildRelease are stamped by -ldflags at
// release build time; the zero values below are what `go run` sees.
var (
	buildDate    = "unknown"
	buildCommit  = "unknown"
	buildRelease = "dev"
)

var (
	flagDomainID int
	flagInterval time.Duration
	flagTopic    string
)

func main() {
	v := libver.NewVersion(
		libver.License_MIT,
		"github.com/sabouaram/rtpsdds",
		"RTPS/DDS core smoke CLI",
		buildDate, buildCommit, buildRelease,
		"rtpsdds", "rtpsctl", struct{}{}, 0,
	)

	app := libcbr.New()
	app.SetVersion(v)
	app.Init()

	app.AddFlagInt(true, &flagDomainID, "domain", "d", 0, "DDS domain id")
	app.AddFlagDuration(true, &flagInterval, "interval", "i", time.Second, "sample publish interval")
	app.AddFlagString(true, &flagTopic, "topic", "t", "rtpsctl/smoke", "topic name to publish on")

	run := app.NewCommand(
		"run",
		"Run a single smoke-test participant",
		"Starts one participant, publishes periodic samples, and tails\nits entity snapshot to stdout until interrupted.",
		"",
		"rtpsctl run --domain 0 --interval 1s",
	)
	run.Run = runParticipant
	app.AddCommand(run)
	app.AddCommandCompletion()

	if err := app.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runParticipant(_ *spfcbr.Command, _ []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	cfg.DomainID = flagDomainID
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "rtpsctl: invalid config:", err)
		os.Exit(1)
	}

	log := logger.New(ctx)

	net := loopback.NewNetwork(7400)
	tp := net.NewTransport()

	participant, err := dds.NewParticipant(cfg, tp, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rtpsctl: new participant:", err)
		os.Exit(1)
	}
	participant.Enable()
	defer participant.Stop()

	topic := dds.NewTopic(flagTopic, "octets", qos.Default(), nil)
	pub := participant.CreatePublisher()
	dw, err := pub.CreateDataWriter(topic, qos.Default(), nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rtpsctl: create data writer:", err)
		os.Exit(1)
	}

	exporter := libadm.NewExporter(os.Stdout)

	ticker := time.NewTicker(flagInterval)
	defer ticker.Stop()
	snapshotEvery := 5
	var tick int

	var seq byte
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := dw.Write([]byte{seq}); err != nil {
				log.Entry(loglvl.ErrorLevel, "rtpsctl: write failed").ErrorAdd(true, err).Log()
			}
			seq++
			tick++
			if tick%snapshotEvery == 0 {
				_ = exporter.WriteSnapshot(participant.Snapshot())
			}
		}
	}
}
