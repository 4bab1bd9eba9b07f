package handlers

import (
	"html/template"
	"net/http"

	"delivery-backend/internal/models"
	"delivery-backend/internal/services"

	"github.com/gin-gonic/gin"
)

const invalidSessionMessage = "Invalid or expired session"

var trackerPage = template.Must(template.New("tracker").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Rider Live Tracking</title>
  <meta name="viewport" content="width=device-width,initial-scale=1"/>
  <style>
    body { font-family: system-ui, Arial; padding: 16px; max-width: 640px; margin: 0 auto; }
    .card { border:1px solid #e5e7eb; border-radius: 12px; padding:16px; }
    .btn { background:#10b981; color:#fff; border:none; padding:12px 16px; border-radius:8px; font-size:16px; }
    .muted { color:#6b7280; font-size:14px; }
    .ok { color:#059669; }
    .err { color:#dc2626; }
  </style>
</head>
<body>
  <h2>Rider Live Tracking</h2>
  <div class="card">
    <p class="muted">Keep this page open while you are on delivery.</p>
    <button id="startBtn" class="btn">Start Sharing Location</button>
    <div id="status" class="muted" style="margin-top:12px;"></div>
  </div>
  <script>
    const pingURL = {{.PingPath}};
    const statusEl = document.getElementById('status');

    function show(msg, cls) {
      statusEl.textContent = msg;
      statusEl.className = cls || 'muted';
    }

    async function ping(pos) {
      try {
        const res = await fetch(pingURL, {
          method: 'POST',
          headers: { 'Content-Type': 'application/json' },
          body: JSON.stringify({
            lat: pos.coords.latitude,
            lng: pos.coords.longitude,
            accuracy: pos.coords.accuracy,
            heading: pos.coords.heading,
            speed: pos.coords.speed
          })
        });
        if (res.status === 404) {
          show('This tracking link has expired.', 'err');
        }
      } catch (e) {
        show('Error sending location: ' + (e.message || e), 'err');
      }
    }

    document.getElementById('startBtn').addEventListener('click', function () {
      if (!navigator.geolocation) {
        show('Geolocation is not supported by this browser.', 'err');
        return;
      }
      show('Requesting location permission...');
      navigator.geolocation.watchPosition(
        function (pos) {
          show('Live: ' + pos.coords.latitude.toFixed(5) + ', ' + pos.coords.longitude.toFixed(5), 'ok');
          ping(pos);
        },
        function (err) { show('Location error: ' + err.message, 'err'); },
        { enableHighAccuracy: true, maximumAge: 5000, timeout: 20000 }
      );
    });
  </script>
</body>
</html>
`))

func StartTracking(tracking *services.TrackingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		link, err := tracking.Start(c.Request.Context(), c.Param("riderId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":     "Tracking enabled",
			"riderId":     link.RiderID,
			"token":       link.Token,
			"trackingUrl": link.TrackingURL,
			"reused":      link.Reused,
		})
	}
}

// StopTracking succeeds even when the rider had no active session.
func StopTracking(tracking *services.TrackingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		riderID := c.Param("riderId")
		stopped, err := tracking.Stop(c.Request.Context(), riderID)
		if err != nil {
			respondError(c, err)
			return
		}
		if !stopped {
			c.JSON(http.StatusOK, gin.H{"message": "No active session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Tracking stopped", "riderId": riderID})
	}
}

// TrackerPage serves the page the rider keeps open while sharing location.
func TrackerPage(tracking *services.TrackingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")
		if _, err := tracking.Resolve(c.Request.Context(), token); err != nil {
			if services.KindOf(err) == services.KindInvalidOrExpired {
				c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte("<h2>Invalid or expired tracking link</h2>"))
				return
			}
			_ = c.Error(err)
			c.String(http.StatusInternalServerError, "Error loading tracker page")
			return
		}

		c.Header("Cache-Control", "no-store")
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		err := trackerPage.Execute(c.Writer, struct{ PingPath string }{
			PingPath: "/api/tracking/ping/" + token,
		})
		if err != nil {
			_ = c.Error(err)
		}
	}
}

// RecordPing accepts a location from the tracker page. The token is checked
// before the body so a dead link always reads as a dead link.
func RecordPing(locations *services.LocationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ping models.LocationPing
		if err := c.ShouldBindJSON(&ping); err != nil {
			_ = c.Error(err)
		}

		_, err := locations.RecordPing(c.Request.Context(), c.Param("token"), ping)
		if err != nil {
			switch services.KindOf(err) {
			case services.KindInvalidOrExpired:
				c.JSON(http.StatusNotFound, gin.H{"message": invalidSessionMessage})
			case services.KindValidation:
				respondError(c, err)
			default:
				_ = c.Error(err)
				c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to record location"})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func LatestLocations(locations *services.LocationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := locations.Latest(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// TrackingSessions lists a rider's session history.
func TrackingSessions(tracking *services.TrackingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, err := tracking.Sessions(c.Request.Context(), c.Param("riderId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessions)
	}
}
