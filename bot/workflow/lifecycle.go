package workflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/adboard/bot/ads"
	"github.com/m3rciful/adboard/core/logger"
)

// register records the user on first contact.
func (m *Machine) register(ctx context.Context, ev Event) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	created, err := m.store.AddUser(ctx, ads.User{ID: ev.UserID, Handle: ev.Handle})
	if err != nil {
		return failed("", 0, "register you", err), err
	}
	text := textAlreadyRegistered
	if created {
		text = textRegistered
	}
	return Result{Outcome: OutcomeRegistered, Effects: []Effect{Prompt(text, MainMenu...)}}, nil
}

// listMine shows the user's published ads in insertion order.
func (m *Machine) listMine(ctx context.Context, ev Event) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	list, err := m.store.GetAdsByOwner(ctx, ev.UserID)
	if err != nil {
		return failed("", 0, "load your ads", err), err
	}
	var effects []Effect
	for _, ad := range list {
		if ad.Published() {
			effects = append(effects, ShowAd(ad))
		}
	}
	if len(effects) == 0 {
		effects = []Effect{Prompt(textNoAds, MainMenu...)}
	}
	return Result{Outcome: OutcomeListed, Effects: effects}, nil
}

// deleteAd removes the channel post and the stored ad. A failed removal is
// reported but does not keep the ad.
func (m *Machine) deleteAd(ctx context.Context, ev Event) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ad, err := m.ownedAd(ctx, ev.UserID, ev.AdID)
	if errors.Is(err, ads.ErrNotFound) {
		return notFound("", ev.AdID), nil
	}
	if err != nil {
		return failed("", ev.AdID, "load the ad", err), err
	}

	var effects []Effect
	if ad.Published() {
		if err := m.publisher.Remove(ctx, ad.PostRef); err != nil {
			effects = append(effects, ErrorNotice(failure("remove the channel post", err)))
			logger.LogEvent(ctx, logger.SVCAds, slog.LevelWarn, "ad.remove.fail",
				slog.Int64("ad_id", ad.ID),
				slog.String("post_ref", ad.PostRef),
				slog.String("err", logger.Sanitize(err.Error())),
			)
		}
	}
	if err := m.store.DeleteAd(ctx, ad.ID); err != nil {
		if errors.Is(err, ads.ErrNotFound) {
			return notFound("", ad.ID), nil
		}
		return failed("", ad.ID, "delete the ad", err), err
	}
	m.dropEdit(ev.UserID, ad.ID)

	logger.LogEvent(ctx, logger.SVCAds, slog.LevelInfo, "ad.deleted",
		slog.Int64("ad_id", ad.ID),
		slog.String("post_ref", ad.PostRef),
	)
	effects = append(effects, Prompt(textDeleted, MainMenu...))
	return Result{Outcome: OutcomeDeleted, AdID: ad.ID, Effects: effects}, nil
}

// dropEdit ends an edit session that targets a deleted ad.
func (m *Machine) dropEdit(userID, adID int64) {
	unlock := m.sessions.Lock(userID)
	defer unlock()
	if s, ok := m.sessions.Get(userID); ok && s.Kind == KindEdit && s.AdID == adID {
		m.sessions.Clear(userID)
	}
}
