package engine

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/soft"
	"github.com/spaghettifunk/lumen/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool
	isSuspended  bool
	platform     *platform.Platform

	device       renderer.Device
	surface      renderer.PresentTarget
	orchestrator *renderer.Orchestrator
	frameState   renderer.FrameState

	clock    *core.Clock
	lastTime float64

	width  uint32
	height uint32

	// Window resize observed this frame, applied before the next record.
	resizePending bool
	resizeWidth   uint32
	resizeHeight  uint32

	// Config file changed on disk; materials are re-applied after a drain.
	// Set from the watcher goroutine, consumed by the run loop.
	configChanged atomic.Bool
	configPath    string
	watcher       *fsnotify.Watcher
}

func New(g *Game, configPath string) (*Engine, error) {
	p, err := platform.New()
	if err != nil {
		return nil, err
	}

	core.SetLogLevel(g.ApplicationConfig.ParsedLogLevel())

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		platform:     p,
		isRunning:    true,
		isSuspended:  false,
		width:        g.ApplicationConfig.Window.Width,
		height:       g.ApplicationConfig.Window.Height,
		configPath:   configPath,
		lastTime:     0,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	config := e.gameInstance.ApplicationConfig

	if !core.EventInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_CONFIG_CHANGED, e, e.onConfigChanged)

	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	if !config.Renderer.Headless {
		if err := e.platform.Startup(config.Window.Title,
			config.Window.X, config.Window.Y,
			config.Window.Width, config.Window.Height); err != nil {
			return err
		}
		e.surface = vulkan.NewPresenter(e.platform)
	} else {
		e.surface = soft.NewSurface()
	}
	e.device = soft.NewDevice(soft.WithPresentTarget(e.surface))

	materials := renderer.NewMaterialTable()
	for i, m := range config.MaterialEntries() {
		if _, err := materials.Add(m); err != nil {
			return fmt.Errorf("material %d: %w", i, err)
		}
	}

	scene := renderer.NewScene()
	if e.gameInstance.FnSetupScene != nil {
		if err := e.gameInstance.FnSetupScene(scene, materials); err != nil {
			return fmt.Errorf("scene setup: %w", err)
		}
	}

	orchestrator, err := renderer.NewOrchestrator(e.device, e.surface, config.OrchestratorConfig(), materials, scene)
	if err != nil {
		return err
	}
	e.orchestrator = orchestrator

	e.frameState = renderer.FrameState{
		LightPosition: config.LightPosition(),
	}

	if e.configPath != "" {
		if err := e.watchConfig(); err != nil {
			core.LogWarn("config watcher disabled: %v", err)
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// watchConfig fires EVENT_CODE_CONFIG_CHANGED whenever the config file is
// rewritten, so material edits land without a restart.
func (e *Engine) watchConfig() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory; editors replace the file rather than write it.
	if err := watcher.Add(filepath.Dir(e.configPath)); err != nil {
		watcher.Close()
		return err
	}
	e.watcher = watcher

	go func() {
		target := filepath.Clean(e.configPath)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					core.EventFire(core.EVENT_CODE_CONFIG_CHANGED, e, core.EventContext{})
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				core.LogWarn("config watcher: %v", err)
			}
		}
	}()
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.ElapsedSeconds()

	for e.isRunning {
		e.platform.PumpMessages()
		if e.platform.ShouldClose() {
			e.isRunning = false
			break
		}

		if e.resizePending {
			e.resizePending = false
			if err := e.orchestrator.Resize(e.resizeWidth, e.resizeHeight); err != nil {
				return err
			}
			if e.gameInstance.FnOnResize != nil {
				if err := e.gameInstance.FnOnResize(e.resizeWidth, e.resizeHeight); err != nil {
					return err
				}
			}
		}

		if e.configChanged.Swap(false) {
			e.reloadMaterials()
		}

		if e.isSuspended {
			continue
		}

		e.clock.Update()
		currentTime := e.clock.ElapsedSeconds()
		delta := currentTime - e.lastTime

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(&e.frameState, delta); err != nil {
				core.LogFatal("Game update failed, shutting down.")
				e.isRunning = false
				break
			}
		}

		if err := e.orchestrator.RenderFrame(e.frameState); err != nil {
			return fmt.Errorf("render frame: %w", err)
		}

		core.MetricsUpdate(delta)
		e.lastTime = currentTime
	}

	return e.Shutdown()
}

// reloadMaterials re-reads the config file and swaps the material table.
// Everything else in the file needs a restart to take effect.
func (e *Engine) reloadMaterials() {
	config, err := LoadConfig(e.configPath)
	if err != nil {
		core.LogWarn("config reload rejected: %v", err)
		return
	}
	if err := e.orchestrator.ReapplyMaterials(config.MaterialEntries()); err != nil {
		core.LogWarn("material reload rejected: %v", err)
		return
	}
	core.LogInfo("materials reloaded from %s", e.configPath)
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	if e.watcher != nil {
		e.watcher.Close()
		e.watcher = nil
	}
	if e.orchestrator != nil {
		if err := e.orchestrator.Cleanup(); err != nil {
			core.LogError("orchestrator cleanup: %v", err)
		}
	}
	if e.device != nil {
		if err := e.device.Shutdown(); err != nil {
			core.LogError("device shutdown: %v", err)
		}
	}
	if e.surface != nil {
		if err := e.surface.Destroy(); err != nil {
			core.LogError("surface destroy: %v", err)
		}
	}
	if err := core.EventShutdown(); err != nil {
		return err
	}
	return e.platform.Shutdown()
}

func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code != core.EVENT_CODE_KEY_PRESSED {
		return false
	}
	// GLFW escape key.
	if data.Data.U16[0] == 256 {
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width := data.Data.U32[0]
	height := data.Data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height

	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	e.resizePending = true
	e.resizeWidth = width
	e.resizeHeight = height
	return true
}

func (e *Engine) onConfigChanged(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	e.configChanged.Store(true)
	return true
}
