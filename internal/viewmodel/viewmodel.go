package viewmodel

import "moodmap/internal/render"

// NewRoomPage holds data for the create-room form.
type NewRoomPage struct {
	Title     string
	RoomTitle string
	Passcode  string
	Error     string
}

// UnlockPage holds data for the passcode form of a locked room.
type UnlockPage struct {
	Title     string
	Slug      string
	RoomTitle string
	Error     string
}

// RoomPage holds data for the main board page.
type RoomPage struct {
	Title     string
	Slug      string
	RoomTitle string
	ShareURL  string
	QRURL     string
	Members   int
	Map       MapFragment
	Popular   PopularFragment
	Emotions  []EmotionOption
}

// MapFragment is the live board for one viewer.
type MapFragment struct {
	Slug   string
	Frame  render.Frame
	Editor *Editor
}

// Editor places the label form next to a pending click.
type Editor struct {
	X, Y         float64
	EmotionLabel string
	MaxLen       int
}

// EmotionOption is one button of the discrete picker.
type EmotionOption struct {
	Key   string
	Label string
	Color string
}

// PopularRow is one bar of the popular emotions sidebar.
type PopularRow struct {
	Key     string
	Label   string
	Count   int
	Percent int
	Bar     string
}

// PopularFragment holds data for the sidebar.
type PopularFragment struct {
	Slug string
	Rows []PopularRow
}
