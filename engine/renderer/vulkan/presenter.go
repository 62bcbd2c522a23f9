package vulkan

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"golang.org/x/image/draw"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

const presenterTimeoutNs = 5_000_000_000

// Presenter implements renderer.PresentTarget on a window surface. Frames
// arrive as float32 pixels at render resolution; the presenter converts
// them to the swapchain format, scales them to the surface extent on the
// CPU and copies them into the acquired swapchain image.
type Presenter struct {
	platform *platform.Platform
	context  *VulkanContext

	renderWidth  uint32
	renderHeight uint32

	stagingBuffer vk.Buffer
	stagingMemory vk.DeviceMemory
	stagingMapped unsafe.Pointer
	stagingSize   vk.DeviceSize

	commandBuffer  *VulkanCommandBuffer
	imageAvailable vk.Semaphore
	renderComplete vk.Semaphore
	inFlight       *VulkanFence

	initialized bool
}

func NewPresenter(p *platform.Platform) *Presenter {
	return &Presenter{
		platform: p,
		context:  &VulkanContext{},
	}
}

func (pr *Presenter) CreateOrResize(width, height uint32, imageCount int) error {
	if !pr.initialized {
		if err := pr.initialize(); err != nil {
			return err
		}
		pr.initialized = true
	} else {
		pr.destroySwapchainResources()
		support, err := DeviceQuerySwapchainSupport(pr.context.Device.PhysicalDevice, pr.context.Surface)
		if err != nil {
			return err
		}
		pr.context.Device.SwapchainSupport = support
	}

	pr.renderWidth = width
	pr.renderHeight = height

	fbWidth, fbHeight := pr.platform.FramebufferSize()
	if fbWidth == 0 || fbHeight == 0 {
		fbWidth, fbHeight = width, height
	}
	pr.context.FramebufferWidth = fbWidth
	pr.context.FramebufferHeight = fbHeight

	swapchain, err := SwapchainCreate(pr.context, fbWidth, fbHeight, uint32(imageCount))
	if err != nil {
		return err
	}
	pr.context.Swapchain = swapchain

	return pr.createStagingBuffer()
}

func (pr *Presenter) initialize() error {
	if !glfw.VulkanSupported() {
		return fmt.Errorf("vulkan is not supported on this platform")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return fmt.Errorf("initialize vulkan: %w", err)
	}

	applicationInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString("Lumen"),
		PEngineName:        VulkanSafeString("Lumen Engine"),
	}

	extensions := pr.platform.GetRequiredInstanceExtensions()
	instanceCreateInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        applicationInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&instanceCreateInfo, pr.context.Allocator, &instance); res != vk.Success {
		return fmt.Errorf("failed to create vulkan instance")
	}
	pr.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return fmt.Errorf("initialize vulkan instance: %w", err)
	}

	surfacePtr, err := pr.platform.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return fmt.Errorf("create window surface: %w", err)
	}
	pr.context.Surface = vk.SurfaceFromPointer(surfacePtr)

	if err := DeviceCreate(pr.context); err != nil {
		return err
	}

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	if res := vk.CreateSemaphore(pr.context.Device.LogicalDevice, &semaphoreCreateInfo, pr.context.Allocator, &pr.imageAvailable); res != vk.Success {
		return fmt.Errorf("failed to create image-available semaphore")
	}
	if res := vk.CreateSemaphore(pr.context.Device.LogicalDevice, &semaphoreCreateInfo, pr.context.Allocator, &pr.renderComplete); res != vk.Success {
		return fmt.Errorf("failed to create render-complete semaphore")
	}

	pr.inFlight, err = NewFence(pr.context, true)
	if err != nil {
		return err
	}
	pr.commandBuffer, err = NewVulkanCommandBuffer(pr.context, pr.context.Device.GraphicsCommandPool)
	if err != nil {
		return err
	}

	core.LogInfo("Vulkan presenter initialized.")
	return nil
}

func (pr *Presenter) createStagingBuffer() error {
	extent := pr.context.Swapchain.Extent
	size := vk.DeviceSize(extent.Width) * vk.DeviceSize(extent.Height) * 4

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(pr.context.Device.LogicalDevice, &bufferCreateInfo, pr.context.Allocator, &buffer); res != vk.Success {
		return fmt.Errorf("failed to create staging buffer")
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(pr.context.Device.LogicalDevice, buffer, &requirements)
	requirements.Deref()

	memoryIndex := pr.context.FindMemoryIndex(requirements.MemoryTypeBits,
		uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if memoryIndex < 0 {
		return fmt.Errorf("no host-visible memory type for the staging buffer")
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(pr.context.Device.LogicalDevice, &allocateInfo, pr.context.Allocator, &memory); res != vk.Success {
		return fmt.Errorf("failed to allocate staging memory")
	}
	if res := vk.BindBufferMemory(pr.context.Device.LogicalDevice, buffer, memory, 0); res != vk.Success {
		return fmt.Errorf("failed to bind staging memory")
	}

	var mapped unsafe.Pointer
	if res := vk.MapMemory(pr.context.Device.LogicalDevice, memory, 0, size, 0, &mapped); res != vk.Success {
		return fmt.Errorf("failed to map staging memory")
	}

	pr.stagingBuffer = buffer
	pr.stagingMemory = memory
	pr.stagingMapped = mapped
	pr.stagingSize = size
	return nil
}

// PresentPixels scales the frame to the surface extent, converts it to the
// swapchain image format and runs the copy-and-present submission. An
// out-of-date swapchain surfaces as core.ErrSurfaceLost; the orchestrator
// drains and calls CreateOrResize.
func (pr *Presenter) PresentPixels(width, height uint32, pix []float32) error {
	if !pr.initialized {
		return fmt.Errorf("present on an uninitialized presenter")
	}
	extent := pr.context.Swapchain.Extent
	pr.fillStaging(width, height, pix)

	if !pr.inFlight.FenceWait(pr.context, presenterTimeoutNs) {
		return fmt.Errorf("present fence wait failed: %w", core.ErrFenceTimeout)
	}
	if err := pr.inFlight.FenceReset(pr.context); err != nil {
		return err
	}

	imageIndex, err := pr.context.Swapchain.SwapchainAcquireNextImageIndex(pr.context, presenterTimeoutNs, pr.imageAvailable, vk.NullFence)
	if err != nil {
		return err
	}

	if err := pr.recordCopy(pr.context.Swapchain.Images[imageIndex], extent); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{pr.commandBuffer.Handle},
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{pr.imageAvailable},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageTransferBit)},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{pr.renderComplete},
	}
	if res := vk.QueueSubmit(pr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, pr.inFlight.Handle); res != vk.Success {
		return fmt.Errorf("failed to submit present copy")
	}
	pr.commandBuffer.UpdateSubmitted()

	return pr.context.Swapchain.SwapchainPresent(pr.context, pr.context.Device.PresentQueue, pr.renderComplete, imageIndex)
}

// fillStaging converts the float32 frame into B8G8R8A8 bytes at the
// swapchain extent, scaling when the render and surface resolutions differ.
func (pr *Presenter) fillStaging(width, height uint32, pix []float32) {
	src := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	for i := 0; i < int(width*height); i++ {
		src.Pix[i*4+0] = toByte(pix[i*4+0])
		src.Pix[i*4+1] = toByte(pix[i*4+1])
		src.Pix[i*4+2] = toByte(pix[i*4+2])
		src.Pix[i*4+3] = toByte(pix[i*4+3])
	}

	extent := pr.context.Swapchain.Extent
	dst := src
	if extent.Width != width || extent.Height != height {
		dst = image.NewRGBA(image.Rect(0, 0, int(extent.Width), int(extent.Height)))
		draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	// Swizzle RGBA to the swapchain's BGRA byte order.
	out := make([]byte, len(dst.Pix))
	for i := 0; i < len(dst.Pix); i += 4 {
		out[i+0] = dst.Pix[i+2]
		out[i+1] = dst.Pix[i+1]
		out[i+2] = dst.Pix[i+0]
		out[i+3] = dst.Pix[i+3]
	}
	vk.Memcopy(pr.stagingMapped, out)
}

func toByte(f float32) byte {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return byte(f*255.0 + 0.5)
}

func (pr *Presenter) recordCopy(target vk.Image, extent vk.Extent2D) error {
	if err := pr.commandBuffer.Reset(); err != nil {
		return err
	}
	if err := pr.commandBuffer.Begin(true); err != nil {
		return err
	}
	cb := pr.commandBuffer.Handle

	subresourceRange := vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1,
		LayerCount: 1,
	}

	toTransfer := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           vk.ImageLayoutUndefined,
		NewLayout:           vk.ImageLayoutTransferDstOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               target,
		SubresourceRange:    subresourceRange,
		DstAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
	}
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toTransfer})

	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(cb, pr.stagingBuffer, target, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})

	toPresent := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           vk.ImageLayoutTransferDstOptimal,
		NewLayout:           vk.ImageLayoutPresentSrc,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               target,
		SubresourceRange:    subresourceRange,
		SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessMemoryReadBit),
	}
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{toPresent})

	return pr.commandBuffer.End()
}

func (pr *Presenter) destroySwapchainResources() {
	vk.DeviceWaitIdle(pr.context.Device.LogicalDevice)
	if pr.stagingMapped != nil {
		vk.UnmapMemory(pr.context.Device.LogicalDevice, pr.stagingMemory)
		pr.stagingMapped = nil
	}
	if pr.stagingBuffer != vk.NullBuffer {
		vk.DestroyBuffer(pr.context.Device.LogicalDevice, pr.stagingBuffer, pr.context.Allocator)
		pr.stagingBuffer = vk.NullBuffer
	}
	if pr.stagingMemory != vk.NullDeviceMemory {
		vk.FreeMemory(pr.context.Device.LogicalDevice, pr.stagingMemory, pr.context.Allocator)
		pr.stagingMemory = vk.NullDeviceMemory
	}
	if pr.context.Swapchain != nil {
		pr.context.Swapchain.SwapchainDestroy(pr.context)
		pr.context.Swapchain = nil
	}
}

func (pr *Presenter) Destroy() error {
	if !pr.initialized {
		return nil
	}
	vk.DeviceWaitIdle(pr.context.Device.LogicalDevice)

	pr.destroySwapchainResources()

	if pr.commandBuffer != nil {
		pr.commandBuffer.Free(pr.context, pr.context.Device.GraphicsCommandPool)
		pr.commandBuffer = nil
	}
	if pr.inFlight != nil {
		pr.inFlight.FenceDestroy(pr.context)
		pr.inFlight = nil
	}
	if pr.imageAvailable != vk.NullSemaphore {
		vk.DestroySemaphore(pr.context.Device.LogicalDevice, pr.imageAvailable, pr.context.Allocator)
		pr.imageAvailable = vk.NullSemaphore
	}
	if pr.renderComplete != vk.NullSemaphore {
		vk.DestroySemaphore(pr.context.Device.LogicalDevice, pr.renderComplete, pr.context.Allocator)
		pr.renderComplete = vk.NullSemaphore
	}

	DeviceDestroy(pr.context)
	vk.DestroySurface(pr.context.Instance, pr.context.Surface, pr.context.Allocator)
	vk.DestroyInstance(pr.context.Instance, pr.context.Allocator)
	pr.initialized = false

	core.LogInfo("Vulkan presenter destroyed.")
	return nil
}

// Presenter satisfies renderer.PresentTarget.
var _ renderer.PresentTarget = (*Presenter)(nil)
