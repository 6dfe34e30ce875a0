package simulator

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
)

const photosPerReport = 3

var (
	photoSols    = []int{1000, 1050, 1100, 1150, 1200, 1250, 1300, 1350, 1400, 1450}
	photoCameras = []string{"FHAZ", "RHAZ", "MAST", "CHEMCAM", "HAZCAM"}
)

// APOD returns the canned picture of the day for the given date.
func APOD(now time.Time) v1.APOD {
	return v1.APOD{
		"copyright":       "NASA/JPL-Caltech",
		"date":            now.Format(time.DateOnly),
		"explanation":     "A simulated astronomy picture of the day. The live service would show nebulae, galaxies and other celestial objects.",
		"hdurl":           "https://apod.nasa.gov/apod/image/2311/Orion_Nebula_Sample.jpg",
		"media_type":      "image",
		"service_version": "v1",
		"title":           "Orion Nebula - Simulated View",
		"url":             "https://apod.nasa.gov/apod/image/2311/Orion_Nebula_Sample_800x600.jpg",
	}
}

func astronomyPicture(apod v1.APOD) *v1.AstronomyPicture {
	str := func(key, def string) string {
		if s, ok := apod[key].(string); ok && s != "" {
			return s
		}
		return def
	}
	return &v1.AstronomyPicture{
		Title:       str("title", "Astronomy Picture of the Day"),
		Date:        str("date", ""),
		Explanation: str("explanation", ""),
		ImageURL:    str("url", str("hdurl", "")),
		Copyright:   str("copyright", "NASA"),
	}
}

// MissionPhotos picks rover photos for a mission. The choice is stable per
// mission id.
func MissionPhotos(missionID string) []v1.MissionPhoto {
	start := int(xxhash.Sum64String(missionID) % uint64(len(photoSols)))

	out := make([]v1.MissionPhoto, 0, photosPerReport)
	for i := range photosPerReport {
		n := (start + i) % len(photoSols)
		sol := photoSols[n]
		camera := photoCameras[n%len(photoCameras)]
		url := fmt.Sprintf("https://mars.nasa.gov/msl-raw-images/msss/%05d/%s/%05d.jpg", sol, camera, n)
		out = append(out, v1.MissionPhoto{
			ID:     100000 + n,
			URL:    url,
			ImgSrc: url,
			Camera: camera,
			Sol:    sol,
		})
	}
	return out
}

// BuildReport assembles the report of a mission's current state.
func BuildReport(st *v1.MissionState, apod v1.APOD) *v1.MissionReport {
	completed := 0
	for _, s := range st.Steps {
		if s.Completed {
			completed++
		}
	}

	logs := make([]v1.ReportLog, 0, len(st.Logs))
	for _, l := range st.Logs {
		logs = append(logs, v1.ReportLog{
			Timestamp: l.Timestamp,
			Agent:     string(l.AgentType),
			Message:   l.Message,
			Level:     l.Level,
		})
	}

	return &v1.MissionReport{
		MissionID:          st.MissionID,
		Goal:               st.Goal,
		Status:             st.Status,
		RoverFinalPosition: st.RoverPosition,
		StepsCompleted:     completed,
		TotalSteps:         len(st.Steps),
		CollectedData:      []map[string]any{},
		MissionPhotos:      MissionPhotos(st.MissionID),
		AstronomyPicture:   astronomyPicture(apod),
		Logs:               logs,
	}
}
