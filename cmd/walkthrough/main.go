package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"propview/internal/camera"
	"propview/internal/common/config"
	"propview/internal/common/logger"
	"propview/internal/geom"
	"propview/internal/hierarchy"
	"propview/internal/layout"
	"propview/internal/payment"
	"propview/internal/pricing"
	"propview/internal/reservation"
	"propview/internal/scene"
)

// ============================================================
// Walkthrough
// ============================================================

// walkthrough opens one project the way the browser viewer does: it polls
// (and optionally listens for push) the inventory, lays out and frames the
// site, and can hold and book a unit through the sandbox checkout.
func main() {
	var (
		projectID    = flag.String("project", "", "project id (required)")
		propertyType = flag.String("type", "", "property type used when the hierarchy carries none")
		unitID       = flag.String("unit", "", "unit to hold")
		minutes      = flag.Int("minutes", 30, "hold duration, 30 or 60")
		book         = flag.Bool("book", false, "pay the token and book the held unit")
		push         = flag.Bool("push", true, "subscribe to websocket change notices")
		watch        = flag.Duration("watch", 0, "keep the view open this long, touring the camera, before exiting")
	)
	flag.Parse()

	cfg, err := config.LoadWalkthrough()
	if err != nil {
		logger.Log.Fatalf("config: %v", err)
	}
	logger.Init("walkthrough", cfg.LogLevel)

	if *projectID == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend := reservation.NewHTTPBackend(cfg.InventoryURL, *propertyType)
	if err := backend.StartSession(ctx); err != nil {
		logger.Log.Fatalf("session: %v", err)
	}

	view := reservation.NewView(backend, reservation.Options{
		ProjectID:    *projectID,
		PollInterval: cfg.PollInterval,
		Checkout:     payment.NewSandboxCheckout(cfg.PaymentSecret),
	})
	if err := view.Open(ctx); err != nil {
		logger.Log.WithError(err).Warn("initial fetch failed; polling continues")
	}
	defer view.Close()

	view.OnChange(func(p *hierarchy.Project) {
		logger.Log.Debugf("[VIEW] %d units refreshed", len(hierarchy.FlattenedUnits(p)))
	})

	if *push {
		wsURL, err := reservation.PushURL(cfg.InventoryURL, *projectID)
		if err != nil {
			logger.Log.Fatalf("push url: %v", err)
		}
		go func() {
			err := view.WatchPush(ctx, wsURL)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, reservation.ErrClosed) {
				logger.Log.WithError(err).Warn("[PUSH] stopped; polling only")
			}
		}()
	}

	var rig *camera.Rig
	if project := view.Snapshot(); project != nil {
		rig = describe(project)
	}

	if *unitID != "" {
		if err := reserve(ctx, view, *unitID, reservation.HoldDuration(*minutes), *book); err != nil {
			logger.Log.WithError(err).Error("reservation failed")
			view.Close()
			os.Exit(1)
		}
	}

	if *watch > 0 {
		tour(ctx, rig, *watch)
	}
}

// tour keeps the view open for d while flying the framed camera around the
// site at a fixed frame rate.
func tour(ctx context.Context, rig *camera.Rig, d time.Duration) {
	const frame = time.Second / 30

	deadline := time.NewTimer(d)
	defer deadline.Stop()
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	script := camera.NewTour(2, camera.ZoomIn, camera.Left, camera.Up, camera.Right, camera.ZoomOut)
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			if rig != nil {
				script.Stop(rig)
				fmt.Printf("camera settled at %.1f,%.1f,%.1f\n",
					rig.Orbit.Position.X, rig.Orbit.Position.Y, rig.Orbit.Position.Z)
			}
			return
		case <-ticker.C:
			if rig != nil {
				script.Step(rig, frame.Seconds())
			}
		}
	}
}

// describe prints the site: status counts, a framed camera and the unit the
// camera looks at first. It returns the framed rig.
func describe(p *hierarchy.Project) *camera.Rig {
	res := layout.Compute(p, layout.DefaultConfig())
	s := scene.Build(res, scene.State{})

	counts := map[hierarchy.Status]int{}
	for _, u := range s.Units() {
		counts[u.Status]++
	}
	fmt.Printf("%s (%s): %d placements, %d available, %d locked, %d booked\n",
		firstNonEmpty(p.Title, p.ID), p.Classification, len(res.Placements),
		counts[hierarchy.StatusAvailable], counts[hierarchy.StatusLocked], counts[hierarchy.StatusBooked])

	rig := camera.NewRig(camera.DefaultOrbit(), camera.PointerInput)
	rig.Frame(res.Bounds)
	fmt.Printf("camera at %.1f,%.1f,%.1f looking at %.1f,%.1f,%.1f\n",
		rig.Orbit.Position.X, rig.Orbit.Position.Y, rig.Orbit.Position.Z,
		rig.Orbit.Target.X, rig.Orbit.Target.Y, rig.Orbit.Target.Z)

	ray := geom.Ray{Origin: rig.Orbit.Position, Dir: rig.Orbit.LookDir()}
	if hit, ok := scene.Pick(s, ray); ok {
		fmt.Printf("in view: %s (%s)\n", hit.Unit.UnitNumber, hit.Unit.Status)
	}

	for _, u := range s.Units() {
		if u.Status != hierarchy.StatusAvailable {
			continue
		}
		q := pricing.Resolve(u, p)
		if !q.Available() {
			fmt.Printf("  %-10s %-12s price on request\n", u.UnitNumber, u.Kind)
			continue
		}
		fmt.Printf("  %-10s %-12s %s (token %s)\n", u.UnitNumber, u.Kind, q.DisplayPrice(), q.DisplayToken())
	}
	return rig
}

func reserve(ctx context.Context, view *reservation.View, unitID string, d reservation.HoldDuration, book bool) error {
	if err := view.Select(unitID); err != nil {
		return err
	}

	u, err := view.RequestHold(ctx, unitID, d)
	if err != nil {
		var conflict *reservation.TransitionConflict
		if errors.As(err, &conflict) {
			fmt.Printf("%s is no longer available (%s)\n", unitID, conflict.Reason)
		}
		return err
	}
	if u.LockExpiry != nil {
		fmt.Printf("held %s until %s\n", u.UnitNumber, u.LockExpiry.Local().Format(time.Kitchen))
	} else {
		fmt.Printf("held %s\n", u.UnitNumber)
	}

	if !book {
		return nil
	}
	u, err = view.RequestBooking(ctx, unitID)
	if err != nil {
		return err
	}
	fmt.Printf("booked %s\n", u.UnitNumber)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
