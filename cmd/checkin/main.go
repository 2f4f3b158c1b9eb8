// Command checkin walks an attendee through checking in to an event from a
// terminal, the same way the check-in page does in a browser.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/CheckinBoT/internal/checkin"
	"github.com/Kerhoff/CheckinBoT/internal/geo"
	"github.com/Kerhoff/CheckinBoT/pkg/logger"
)

type options struct {
	baseURL      string
	event        string
	qr           string
	lat, lng     float64
	denyLocation bool
	name, email  string
	markers      string
	logLevel     string
}

func main() {
	var opts options
	flag.StringVar(&opts.baseURL, "url", "http://localhost:8080", "check-in server base URL")
	flag.StringVar(&opts.event, "event", "", "event id")
	flag.StringVar(&opts.qr, "qr", "", "scanned QR token or check-in link")
	flag.Float64Var(&opts.lat, "lat", 0, "device latitude")
	flag.Float64Var(&opts.lng, "lng", 0, "device longitude")
	flag.BoolVar(&opts.denyLocation, "deny-location", false, "refuse the location request")
	flag.StringVar(&opts.name, "name", "", "attendee name")
	flag.StringVar(&opts.email, "email", "", "attendee email")
	flag.StringVar(&opts.markers, "markers", defaultMarkersPath(), "file remembering past check-ins")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	state, err := run(ctx, opts, logger.NewWithOutput(opts.logLevel, "text", os.Stderr))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
	if state != checkin.StateSuccess {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, l *logrus.Logger) (checkin.State, error) {
	eventID, err := checkin.ParseEventID(opts.event)
	if err != nil {
		return "", err
	}

	locator := checkin.StaticLocator{Point: geo.Point{Lat: opts.lat, Lng: opts.lng}}
	if opts.denyLocation {
		locator.Err = &checkin.LocationError{Kind: checkin.LocationPermissionDenied}
	}

	client := checkin.NewClient(opts.baseURL, nil)
	flow := checkin.NewFlow(checkin.Config{
		EventID:   eventID,
		Token:     scannedToken(opts.qr),
		Events:    client,
		Locator:   locator,
		Submitter: client,
		Markers:   checkin.NewFileMarkers(opts.markers),
		Logger:    l,
	})

	state, err := flow.Load(ctx)
	for err == nil {
		report(flow, state)

		switch state {
		case checkin.StateCountdown:
			state, err = flow.WaitCountdown(ctx)
		case checkin.StateLocationVerification:
			state, err = flow.VerifyLocation(ctx)
		case checkin.StateCheckInForm:
			state, err = flow.Submit(ctx, opts.name, opts.email)
			if errors.Is(err, checkin.ErrInvalidAttendee) {
				return state, fmt.Errorf("%w (use --name and --email)", err)
			}
		default:
			return state, nil
		}
	}
	return state, err
}

func report(flow *checkin.Flow, state checkin.State) {
	switch state {
	case checkin.StateNotFound:
		fmt.Println("Event not found.")
	case checkin.StateCountdown:
		fmt.Printf("%s: registration opens at %s, waiting...\n",
			flow.Event().Title, flow.OpensAt().Local().Format("Mon 02 Jan 15:04:05"))
	case checkin.StateQRRequired:
		fmt.Println("Scan the QR code shown at the venue and pass it with --qr.")
	case checkin.StateLocationVerification:
		fmt.Println("Verifying location...")
	case checkin.StateClosed:
		fmt.Println("Registration for this event is closed.")
	case checkin.StateAlreadyCheckedIn:
		fmt.Println("You already checked in to this event.")
	case checkin.StateCheckInForm:
		fmt.Println("Location verified, submitting...")
	case checkin.StateSuccess:
		fmt.Printf("Checked in to %s.\n", flow.Event().Title)
	case checkin.StateError:
		fmt.Println(flow.Message())
	}
}

// scannedToken accepts either the bare token or the full link encoded in
// the QR code.
func scannedToken(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	if token := u.Query().Get("qr"); token != "" {
		return token
	}
	return raw
}

func defaultMarkersPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".checkin-markers.json"
	}
	return filepath.Join(dir, "checkinbot", "markers.json")
}
