package model

import "sort"

// EventCategory groups event types. Events only ever match within a category.
type EventCategory string

// Event categories.
const (
	CategoryPossession EventCategory = "possession"
	CategoryPassing    EventCategory = "passing"
	CategoryShooting   EventCategory = "shooting"
	CategoryDefending  EventCategory = "defending"
	CategoryDuel       EventCategory = "duel"
	CategorySetPiece   EventCategory = "set_piece"
	CategoryGoalkeeper EventCategory = "goalkeeper"
	CategoryFoul       EventCategory = "foul"
	CategoryGameState  EventCategory = "game_state"
)

// EventType is a single kind of on-ball or game-state event.
type EventType string

// Event types, grouped by category.
const (
	EventBallReceipt  EventType = "ball_receipt"
	EventBallRecovery EventType = "ball_recovery"
	EventCarry        EventType = "carry"
	EventDribble      EventType = "dribble"
	EventDispossessed EventType = "dispossessed"
	EventMiscontrol   EventType = "miscontrol"

	EventPass            EventType = "pass"
	EventCross           EventType = "cross"
	EventLongBall        EventType = "long_ball"
	EventThroughBall     EventType = "through_ball"
	EventSwitch          EventType = "switch"
	EventPassIntoBox     EventType = "pass_into_box"
	EventCutback         EventType = "cutback"
	EventAssist          EventType = "assist"
	EventKeyPass         EventType = "key_pass"
	EventProgressivePass EventType = "progressive_pass"

	EventShot          EventType = "shot"
	EventShotOnTarget  EventType = "shot_on_target"
	EventShotOffTarget EventType = "shot_off_target"
	EventShotBlocked   EventType = "shot_blocked"
	EventGoal          EventType = "goal"
	EventOwnGoal       EventType = "own_goal"
	EventPenalty       EventType = "penalty"
	EventFreeKickShot  EventType = "free_kick_shot"
	EventHeader        EventType = "header"

	EventTackle       EventType = "tackle"
	EventInterception EventType = "interception"
	EventClearance    EventType = "clearance"
	EventBlock        EventType = "block"
	EventPressure     EventType = "pressure"
	EventRecoveryRun  EventType = "recovery_run"

	EventAerialDuel    EventType = "aerial_duel"
	EventGroundDuel    EventType = "ground_duel"
	EventLooseBallDuel EventType = "loose_ball_duel"

	EventCorner      EventType = "corner"
	EventFreeKick    EventType = "free_kick"
	EventThrowIn     EventType = "throw_in"
	EventGoalKick    EventType = "goal_kick"
	EventKickOff     EventType = "kick_off"
	EventPenaltyKick EventType = "penalty_kick"

	EventSave       EventType = "save"
	EventPunch      EventType = "punch"
	EventCatch      EventType = "catch"
	EventSmother    EventType = "smother"
	EventGoalKickGK EventType = "goal_kick_gk"
	EventDropKick   EventType = "drop_kick"
	EventThrowGK    EventType = "throw_gk"

	EventFoulCommitted EventType = "foul_committed"
	EventFoulWon       EventType = "foul_won"
	EventYellowCard    EventType = "yellow_card"
	EventRedCard       EventType = "red_card"
	EventSecondYellow  EventType = "second_yellow"
	EventHandball      EventType = "handball"
	EventOffside       EventType = "offside"

	EventHalfStart    EventType = "half_start"
	EventHalfEnd      EventType = "half_end"
	EventSubstitution EventType = "substitution"
	EventInjury       EventType = "injury"
	EventBallOut      EventType = "ball_out"
	EventRefereeStop  EventType = "referee_stop"
)

var eventCategories = map[EventType]EventCategory{
	EventBallReceipt:  CategoryPossession,
	EventBallRecovery: CategoryPossession,
	EventCarry:        CategoryPossession,
	EventDribble:      CategoryPossession,
	EventDispossessed: CategoryPossession,
	EventMiscontrol:   CategoryPossession,

	EventPass:            CategoryPassing,
	EventCross:           CategoryPassing,
	EventLongBall:        CategoryPassing,
	EventThroughBall:     CategoryPassing,
	EventSwitch:          CategoryPassing,
	EventPassIntoBox:     CategoryPassing,
	EventCutback:         CategoryPassing,
	EventAssist:          CategoryPassing,
	EventKeyPass:         CategoryPassing,
	EventProgressivePass: CategoryPassing,

	EventShot:          CategoryShooting,
	EventShotOnTarget:  CategoryShooting,
	EventShotOffTarget: CategoryShooting,
	EventShotBlocked:   CategoryShooting,
	EventGoal:          CategoryShooting,
	EventOwnGoal:       CategoryShooting,
	EventPenalty:       CategoryShooting,
	EventFreeKickShot:  CategoryShooting,
	EventHeader:        CategoryShooting,

	EventTackle:       CategoryDefending,
	EventInterception: CategoryDefending,
	EventClearance:    CategoryDefending,
	EventBlock:        CategoryDefending,
	EventPressure:     CategoryDefending,
	EventRecoveryRun:  CategoryDefending,

	EventAerialDuel:    CategoryDuel,
	EventGroundDuel:    CategoryDuel,
	EventLooseBallDuel: CategoryDuel,

	EventCorner:      CategorySetPiece,
	EventFreeKick:    CategorySetPiece,
	EventThrowIn:     CategorySetPiece,
	EventGoalKick:    CategorySetPiece,
	EventKickOff:     CategorySetPiece,
	EventPenaltyKick: CategorySetPiece,

	EventSave:       CategoryGoalkeeper,
	EventPunch:      CategoryGoalkeeper,
	EventCatch:      CategoryGoalkeeper,
	EventSmother:    CategoryGoalkeeper,
	EventGoalKickGK: CategoryGoalkeeper,
	EventDropKick:   CategoryGoalkeeper,
	EventThrowGK:    CategoryGoalkeeper,

	EventFoulCommitted: CategoryFoul,
	EventFoulWon:       CategoryFoul,
	EventYellowCard:    CategoryFoul,
	EventRedCard:       CategoryFoul,
	EventSecondYellow:  CategoryFoul,
	EventHandball:      CategoryFoul,
	EventOffside:       CategoryFoul,

	EventHalfStart:    CategoryGameState,
	EventHalfEnd:      CategoryGameState,
	EventSubstitution: CategoryGameState,
	EventInjury:       CategoryGameState,
	EventBallOut:      CategoryGameState,
	EventRefereeStop:  CategoryGameState,
}

// Category returns the category of t and whether t is a known type.
func (t EventType) Category() (EventCategory, bool) {
	c, ok := eventCategories[t]
	return c, ok
}

// Valid reports whether t is in the catalogue.
func (t EventType) Valid() bool {
	_, ok := eventCategories[t]
	return ok
}

// EventTypes returns every known event type in lexical order.
func EventTypes() []EventType {
	out := make([]EventType, 0, len(eventCategories))
	for t := range eventCategories {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
