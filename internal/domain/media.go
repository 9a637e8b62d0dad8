package domain

type AudioConstraints struct {
	Enabled          bool
	EchoCancellation bool
}

// MediaConstraints is what the call asks the media source for.
type MediaConstraints struct {
	Video bool
	Audio AudioConstraints
}

// CallConstraints is camera plus echo-cancelled microphone.
func CallConstraints() MediaConstraints {
	return MediaConstraints{
		Video: true,
		Audio: AudioConstraints{Enabled: true, EchoCancellation: true},
	}
}
