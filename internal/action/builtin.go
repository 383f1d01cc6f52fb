package action

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/directory"
	"github.com/grabngo/loaner/internal/metrics"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/settings"
	"github.com/grabngo/loaner/pkg/mailer"
)

// Built-in action names
const (
	LockDevice        = "lock_device"
	SendReminder      = "send_reminder"
	SendWelcome       = "send_welcome"
	SendReturnThanks  = "send_return_thanks"
	RequestShelfAudit = "request_shelf_audit"
	GuestModeExpired  = "guest_mode_expired"
)

// errNoop ends a Mutate callback without writing
var errNoop = errors.New("nothing to do")

const dateLayout = "Mon, Jan 2 2006"

// Builtins returns the actions shipped with the service
func Builtins() []Action {
	return []Action{
		{Name: LockDevice, FriendlyName: "Lock device", Kind: Async, Run: lockDevice},
		{Name: SendReminder, FriendlyName: "Send loan reminder", Kind: Async, Run: sendReminder},
		{Name: SendWelcome, FriendlyName: "Send welcome email", Kind: Async, Run: sendWelcome},
		{Name: SendReturnThanks, FriendlyName: "Send return thanks email", Kind: Async, Run: sendReturnThanks},
		{Name: RequestShelfAudit, FriendlyName: "Request shelf audit", Kind: Async, Run: requestShelfAudit},
		{Name: GuestModeExpired, FriendlyName: "Expire guest mode", Kind: Async, Run: guestModeExpired},
	}
}

func requireDevice(args Args) (*model.Device, error) {
	if args.Device == nil {
		return nil, apperr.ErrMissingDevice.Withf("a device is required")
	}
	return args.Device, nil
}

func requireShelf(args Args) (*model.Shelf, error) {
	if args.Shelf == nil {
		return nil, apperr.ErrMissingShelf.Withf("a shelf is required")
	}
	return args.Shelf, nil
}

// lockDevice moves the device into the locked OU and flags it
func lockDevice(ctx context.Context, env *Env, args Args) error {
	snap, err := requireDevice(args)
	if err != nil {
		return err
	}
	d, err := env.Devices.FindByID(ctx, snap.ID)
	if err != nil {
		return err
	}
	if d.Locked {
		return nil
	}

	prefix, err := env.Settings.GetString(ctx, settings.OrgUnitPrefix)
	if err != nil {
		return err
	}
	ou := directory.OUPath(prefix, directory.OULocked)
	if err := env.Directory.MoveToOU(ctx, d.ChromeDeviceID, ou); err != nil {
		return err
	}

	now := env.now()
	_, err = env.Devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		d.Locked = true
		d.CurrentOU = ou
		d.OUChangedDate = &now
		return nil
	})
	return err
}

// sendReminder claims the device's pending reminder and mails the borrower.
// The claim is a compare-and-set on the device row, so a redelivered task
// finds the reminder already advanced and does nothing.
func sendReminder(ctx context.Context, env *Env, args Args) error {
	snap, err := requireDevice(args)
	if err != nil {
		return err
	}
	if !snap.NextReminder.IsSet() {
		return apperr.ErrBadDevice.Withf("device %s has no pending reminder", snap.SerialNumber)
	}
	level := snap.NextReminder.Level

	event, err := env.Reminders.Get(ctx, level)
	if err != nil {
		return apperr.ErrBadDevice.Wrap(err)
	}
	following, err := env.Reminders.Get(ctx, level+1)
	if err != nil && !errors.Is(err, apperr.ErrReminderNotFound) {
		return err
	}

	now := env.now()
	d, err := env.Devices.Mutate(ctx, snap.ID, func(d *model.Device) error {
		if !d.OnLoan() || !d.NextReminder.IsSet() || d.NextReminder.Level != level {
			return errNoop
		}
		count := 1
		if d.LastReminder.IsSet() && d.LastReminder.Level == level {
			count = d.LastReminder.Count + 1
		}
		sent := now
		d.LastReminder = model.Reminder{Level: level, Time: &sent, Count: count}
		if following != nil {
			at := now.Add(following.Delay())
			d.NextReminder = model.Reminder{Level: following.Level, Time: &at}
		} else {
			d.NextReminder = model.Reminder{}
		}
		return nil
	})
	if errors.Is(err, errNoop) {
		log.Printf("Reminder level %d for device %s already handled", level, snap.SerialNumber)
		return nil
	}
	if err != nil {
		return err
	}

	enabled, err := env.Settings.GetBool(ctx, settings.LoanDurationEmail)
	if err != nil || !enabled {
		return err
	}

	bcc, err := env.Settings.GetList(ctx, settings.ReminderEmailBCC)
	if err != nil {
		return err
	}
	data := mailData(ctx, env, d)
	data["Count"] = d.LastReminder.Count
	if err := env.Mail.Send(ctx, mailer.Envelope{
		To:       []string{d.AssignedUser},
		BCC:      bcc,
		Template: event.TemplateName,
		Data:     data,
	}); err != nil {
		log.Printf("❌ Failed to send reminder level %d for %s: %v", level, d.SerialNumber, err)
		return nil
	}
	metrics.RemindersSent.WithLabelValues(strconv.Itoa(level)).Inc()
	return nil
}

// sendWelcome mails the new borrower their loan details
func sendWelcome(ctx context.Context, env *Env, args Args) error {
	d, err := requireDevice(args)
	if err != nil {
		return err
	}
	if !d.OnLoan() {
		return apperr.ErrBadDevice.Withf("device %s is not on loan", d.SerialNumber)
	}
	return env.Mail.Send(ctx, mailer.Envelope{
		To:       []string{d.AssignedUser},
		Template: "loan_assignment",
		Data:     mailData(ctx, env, d),
	})
}

// sendReturnThanks mails the former borrower once the device is back
func sendReturnThanks(ctx context.Context, env *Env, args Args) error {
	d, err := requireDevice(args)
	if err != nil {
		return err
	}
	if args.User == "" {
		return apperr.ErrBadDevice.Withf("device %s has no former borrower", d.SerialNumber)
	}
	data := mailData(ctx, env, d)
	data["User"] = args.User
	return env.Mail.Send(ctx, mailer.Envelope{
		To:       []string{args.User},
		Template: "loan_return",
		Data:     data,
	})
}

// requestShelfAudit flags the shelf for audit and notifies whoever audits it
func requestShelfAudit(ctx context.Context, env *Env, args Args) error {
	snap, err := requireShelf(args)
	if err != nil {
		return err
	}
	shelf, err := env.Shelves.FindByID(ctx, snap.ID)
	if err != nil {
		return err
	}
	if shelf.AuditRequested {
		return nil
	}
	shelf.AuditRequested = true
	if err := env.Shelves.Save(ctx, shelf); err != nil {
		return err
	}

	enabled, err := env.Settings.GetBool(ctx, settings.ShelfAuditEmail)
	if err != nil || !enabled {
		return err
	}
	to, err := env.Settings.GetString(ctx, settings.ShelfAuditEmailTo)
	if err != nil {
		return err
	}
	if to == "" {
		to = shelf.ResponsibleForAudit
	}
	if to == "" {
		log.Printf("⚠️  No audit recipient for shelf %s", shelf.Location)
		return nil
	}

	data := mailData(ctx, env, nil)
	data["Shelf"] = shelf
	data["ShelfName"] = shelf.Identifier()
	data["LastAudit"] = "never"
	if shelf.LastAuditTime != nil {
		data["LastAudit"] = shelf.LastAuditTime.Format(dateLayout)
	}
	if err := env.Mail.Send(ctx, mailer.Envelope{
		To:       []string{to},
		Template: "shelf_audit_request",
		Data:     data,
	}); err != nil {
		log.Printf("❌ Failed to send audit request for shelf %s: %v", shelf.Location, err)
	}
	return nil
}

// guestModeExpired moves a device out of the guest OU once its window closes.
// A device that changed hands since the window opened is left alone.
func guestModeExpired(ctx context.Context, env *Env, args Args) error {
	snap, err := requireDevice(args)
	if err != nil {
		return err
	}
	d, err := env.Devices.FindByID(ctx, snap.ID)
	if err != nil {
		return err
	}
	if !d.GuestEnabled || d.AssignedUser != snap.AssignedUser || !sameTime(d.AssignmentDate, snap.AssignmentDate) {
		return nil
	}

	prefix, err := env.Settings.GetString(ctx, settings.OrgUnitPrefix)
	if err != nil {
		return err
	}
	ou := directory.OUPath(prefix, directory.OUDefault)
	if err := env.Directory.MoveToOU(ctx, d.ChromeDeviceID, ou); err != nil {
		return err
	}

	now := env.now()
	_, err = env.Devices.Mutate(ctx, d.ID, func(d *model.Device) error {
		if !d.GuestEnabled {
			return errNoop
		}
		d.GuestEnabled = false
		d.CurrentOU = ou
		d.OUChangedDate = &now
		return nil
	})
	if errors.Is(err, errNoop) {
		return nil
	}
	return err
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	// stores may keep less precision than the snapshot
	return a.Truncate(time.Millisecond).Equal(b.Truncate(time.Millisecond))
}

// mailData collects the template fields shared by every loaner email
func mailData(ctx context.Context, env *Env, d *model.Device) map[string]interface{} {
	data := map[string]interface{}{
		"ManageURL": env.ManageURL,
	}
	if v, err := env.Settings.GetString(ctx, settings.ImgBannerPrimary); err == nil {
		data["BannerURL"] = v
	}
	if v, err := env.Settings.GetString(ctx, settings.ImgButtonManage); err == nil {
		data["ManageButtonURL"] = v
	}
	if v, err := env.Settings.GetString(ctx, settings.SupportContact); err == nil {
		data["SupportContact"] = v
	}
	if d == nil {
		return data
	}
	data["Device"] = d
	data["User"] = d.AssignedUser
	if d.DueDate != nil {
		data["DueDate"] = d.DueDate.Format(dateLayout)
	}
	if d.MaxExtendDate != nil {
		data["MaxExtendDate"] = d.MaxExtendDate.Format(dateLayout)
	}
	return data
}
