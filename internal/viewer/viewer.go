// Package viewer generates the browser-hosted 3D scene page the
// headless driver screenshots. Model loading, lighting and camera math
// all live in this page; the Go side only passes view names and
// rotation angles through to it.
package viewer

import (
	"bytes"
	"html/template"

	"github.com/gofiber/fiber/v2"

	"github.com/resdiihd/puppeteer-glb-renderer/pkg/response"
)

// ModelResolver maps a model id to the public URL of its stored file.
type ModelResolver func(modelID string) (string, error)

type Viewer struct {
	tmpl    *template.Template
	resolve ModelResolver
}

func New(resolve ModelResolver) *Viewer {
	return &Viewer{
		tmpl:    template.Must(template.New("viewer").Parse(pageTemplate)),
		resolve: resolve,
	}
}

// Handler serves GET /viewer/:modelId.
func (v *Viewer) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		modelID := c.Params("modelId")
		modelURL, err := v.resolve(modelID)
		if err != nil {
			return response.NotFound(c, "Model not found")
		}

		var buf bytes.Buffer
		if err := v.tmpl.Execute(&buf, map[string]string{
			"ModelURL":   modelURL,
			"Background": c.Query("background", "#f0f0f0"),
		}); err != nil {
			return response.ServiceError(c, "Failed to render viewer page")
		}

		c.Type("html")
		return c.Send(buf.Bytes())
	}
}

// pageTemplate hosts the GLB scene. Contract with the driver:
//   - window.__viewerReady flips true once the model is framed
//   - window.__viewerError carries a load failure message
//   - window.setView(name) returns false for unknown view names
//   - window.setAngle(deg) orbits the camera around the model's Y axis
const pageTemplate = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<style>html,body{margin:0;padding:0;overflow:hidden;background:{{.Background}}}canvas{display:block}</style>
<script type="importmap">
{"imports":{"three":"https://unpkg.com/three@0.160.0/build/three.module.js","three/addons/":"https://unpkg.com/three@0.160.0/examples/jsm/"}}
</script>
</head>
<body>
<script type="module">
import * as THREE from 'three';
import { GLTFLoader } from 'three/addons/loaders/GLTFLoader.js';

const scene = new THREE.Scene();
scene.background = new THREE.Color('{{.Background}}');

const camera = new THREE.PerspectiveCamera(45, window.innerWidth / window.innerHeight, 0.01, 1000);
const renderer = new THREE.WebGLRenderer({ antialias: true, preserveDrawingBuffer: true });
renderer.setSize(window.innerWidth, window.innerHeight);
renderer.setPixelRatio(1);
document.body.appendChild(renderer.domElement);

scene.add(new THREE.AmbientLight(0xffffff, 0.8));
const key = new THREE.DirectionalLight(0xffffff, 1.2);
key.position.set(3, 5, 4);
scene.add(key);
const fill = new THREE.DirectionalLight(0xffffff, 0.5);
fill.position.set(-3, 2, -4);
scene.add(fill);

let center = new THREE.Vector3();
let radius = 3;

const VIEW_DIRECTIONS = {
  front:  new THREE.Vector3(0, 0, 1),
  back:   new THREE.Vector3(0, 0, -1),
  left:   new THREE.Vector3(-1, 0, 0),
  right:  new THREE.Vector3(1, 0, 0),
  top:    new THREE.Vector3(0, 1, 0),
  bottom: new THREE.Vector3(0, -1, 0),
};

function place(dir) {
  camera.position.copy(center).addScaledVector(dir.clone().normalize(), radius);
  camera.lookAt(center);
  renderer.render(scene, camera);
}

window.setView = function (name) {
  const dir = VIEW_DIRECTIONS[name];
  if (!dir) return false;
  place(dir);
  return true;
};

window.setAngle = function (deg) {
  const rad = deg * Math.PI / 180;
  place(new THREE.Vector3(Math.sin(rad), 0.3, Math.cos(rad)));
  return true;
};

new GLTFLoader().load('{{.ModelURL}}',
  (gltf) => {
    scene.add(gltf.scene);
    const box = new THREE.Box3().setFromObject(gltf.scene);
    const sphere = box.getBoundingSphere(new THREE.Sphere());
    center = sphere.center;
    radius = Math.max(sphere.radius * 2.4, 0.1);
    window.setView('front');
    window.__viewerReady = true;
  },
  undefined,
  (err) => { window.__viewerError = String(err && err.message || err); }
);
</script>
</body>
</html>
`
