package tracker

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/Faultbox/sectorstream/internal/sector"
)

const edge = 1000.0

type move struct {
	from, to sector.Sector
}

type fakeStreamer struct {
	added   int
	removed int
	moves   []move
	fail    error
}

func (f *fakeStreamer) SectorFromLocation(l mgl64.Vec3) sector.Sector {
	return sector.FromLocation(l, edge)
}

func (f *fakeStreamer) AddTrackedActor(uuid.UUID, mgl64.Vec3) error {
	if f.fail != nil {
		return f.fail
	}
	f.added++
	return nil
}

func (f *fakeStreamer) RemoveTrackedActor(uuid.UUID) error {
	f.removed++
	return nil
}

func (f *fakeStreamer) HandleActorMovedSector(_ uuid.UUID, from, to sector.Sector) error {
	f.moves = append(f.moves, move{from, to})
	return nil
}

func TestUpdate(t *testing.T) {
	s := &fakeStreamer{}
	tr := New(s, nil)
	id, err := tr.Register(mgl64.Vec3{500, 500, 0})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		loc   mgl64.Vec3
		moved bool
		want  sector.Sector
	}{
		{"same sector", mgl64.Vec3{900, 100, 0}, false, sector.New(0, 0)},
		{"east", mgl64.Vec3{1000, 100, 0}, true, sector.New(1, 0)},
		{"still east", mgl64.Vec3{1999, 999, 50}, false, sector.New(1, 0)},
		{"south west", mgl64.Vec3{-1, -1, 0}, true, sector.New(-1, -1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			moved, err := tr.Update(id, tt.loc)
			if err != nil {
				t.Fatal(err)
			}
			if moved != tt.moved {
				t.Errorf("moved = %v, want %v", moved, tt.moved)
			}
			if got, _ := tr.Sector(id); got != tt.want {
				t.Errorf("sector = %v, want %v", got, tt.want)
			}
		})
	}

	want := []move{
		{sector.New(0, 0), sector.New(1, 0)},
		{sector.New(1, 0), sector.New(-1, -1)},
	}
	if len(s.moves) != len(want) {
		t.Fatalf("streamer saw %d moves, want %d", len(s.moves), len(want))
	}
	for i := range want {
		if s.moves[i] != want[i] {
			t.Errorf("move %d = %v, want %v", i, s.moves[i], want[i])
		}
	}
}

func TestUnregister(t *testing.T) {
	s := &fakeStreamer{}
	tr := New(s, nil)
	id, _ := tr.Register(mgl64.Vec3{})

	if err := tr.Unregister(id); err != nil {
		t.Fatal(err)
	}
	if s.removed != 1 || tr.Len() != 0 {
		t.Errorf("removed=%d len=%d", s.removed, tr.Len())
	}
	if err := tr.Unregister(id); !errors.Is(err, ErrUnknown) {
		t.Errorf("second unregister: %v", err)
	}
	if _, err := tr.Update(id, mgl64.Vec3{}); !errors.Is(err, ErrUnknown) {
		t.Errorf("update after unregister: %v", err)
	}
}

func TestRegisterFailure(t *testing.T) {
	boom := errors.New("boom")
	tr := New(&fakeStreamer{fail: boom}, nil)
	if _, err := tr.Register(mgl64.Vec3{}); !errors.Is(err, boom) {
		t.Errorf("got %v, want wrapped streamer error", err)
	}
	if tr.Len() != 0 {
		t.Error("failed registration kept the actor")
	}
}
